package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jkariuki/nyumbani-backend/pkg/migrate"
)

func TestPaymentMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_payment_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no payment migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE UNIQUE INDEX idx_payments_transaction_id ON payments (transaction_id)",
		"CREATE UNIQUE INDEX idx_invoices_tenant_month ON invoices (tenant_id, month_year)",
		"payment_id     uuid REFERENCES payments (id)",
		"DROP TABLE invoices",
		"DROP TABLE payments",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCoreMigrationEnforcesSingleActiveTenant(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_core_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no core migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE UNIQUE INDEX idx_apartments_reference ON apartments (reference)",
		"CREATE UNIQUE INDEX idx_tenants_active_apartment",
		"WHERE status = 'active' AND apartment_id IS NOT NULL",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateMigrationsDir(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}
