package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	uniqueViolationCode = "23505"
	sqliteUniquePrefix  = "UNIQUE constraint failed:"
)

// IsUniqueViolation reports whether err is a unique-constraint violation.
// When constraintName is non-empty the violated constraint must also match
// it (substring match, so callers may pass a column name like "email").
//
// Typed pgx and pq errors are inspected first. The message-text fallback
// covers plain-text errors and the sqlite driver used in tests; sqlite
// names the table.column pair rather than the index, so the fallback also
// matches the constraint name against that pair.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == uniqueViolationCode && matchesConstraint(pgxErr.ConstraintName, constraintName)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode && matchesConstraint(pqErr.Constraint, constraintName)
	}

	msg := err.Error()
	if i := strings.Index(msg, sqliteUniquePrefix); i >= 0 {
		return constraintName == "" || matchesSqliteColumns(msg[i+len(sqliteUniquePrefix):], constraintName)
	}
	if strings.Contains(msg, "duplicate key value") {
		return constraintName == "" || strings.Contains(msg, constraintName)
	}
	return false
}

func matchesConstraint(violated, wanted string) bool {
	if wanted == "" {
		return true
	}
	return strings.Contains(violated, wanted)
}

// matchesSqliteColumns compares a constraint name against sqlite's
// comma-separated "table.column" list, e.g. "payments.transaction_id"
// against "idx_payments_transaction_id" or "email" against "users.email".
func matchesSqliteColumns(columns, constraintName string) bool {
	for _, col := range strings.Split(columns, ",") {
		token := strings.ReplaceAll(strings.TrimSpace(col), ".", "_")
		if token == "" {
			continue
		}
		if strings.Contains(constraintName, token) || strings.Contains(token, constraintName) {
			return true
		}
	}
	return false
}
