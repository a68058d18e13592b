package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
)

const (
	// DefaultLimit is the page size used when a request does not supply one.
	DefaultLimit = 25
	// MaxLimit caps the rows a single page can request.
	MaxLimit = 100
)

// Params carries cursor pagination inputs from a controller to a repo.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor pins a page boundary to the (created_at, id) pair of the last row
// on the previous page. The id breaks ties between rows created in the same
// instant.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps a requested limit into [1, MaxLimit], defaulting
// non-positive values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer is the normalized limit plus one buffer row so callers can
// tell whether a further page exists without a count query.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor serializes a page boundary into an opaque token.
func EncodeCursor(cursor Cursor) string {
	payload := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.ID.String()
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a client-supplied token. A blank token means the first
// page; a malformed one is a validation error, never an internal one.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed cursor")
	}
	payload := string(decoded)

	sep := strings.IndexByte(payload, '|')
	if sep < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed cursor")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, payload[:sep])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed cursor timestamp")
	}
	id, err := uuid.Parse(payload[sep+1:])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("malformed cursor id %q", payload[sep+1:]))
	}

	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}
