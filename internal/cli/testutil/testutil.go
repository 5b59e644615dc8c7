// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/spf13/cobra"

	// Register the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// ShopFixture creates the tables of the test shop database.
var ShopFixture = []string{
	`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, region TEXT)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER REFERENCES customers(id),
		amount REAL,
		ordered_at TEXT
	)`,
	`INSERT INTO customers VALUES (1, 'Acme', 'EMEA'), (2, 'Globex', 'AMER'), (3, 'Initech', 'AMER')`,
	`INSERT INTO orders VALUES (10, 1, 120.5, '2024-01-03'), (11, 2, 80, '2024-02-11'), (12, 2, 42.25, '2024-03-09')`,
}

// SetupTestProject creates a temporary project: a seeded SQLite database
// and a lumen.yaml pointing at it. extra is appended to the config file.
// It returns the project directory.
func SetupTestProject(t *testing.T, extra string) string {
	t.Helper()

	tmpDir := t.TempDir()

	db, err := sql.Open("sqlite", filepath.Join(tmpDir, "shop.db"))
	if err != nil {
		t.Fatalf("failed to open shop.db: %v", err)
	}
	for _, stmt := range ShopFixture {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to seed shop.db: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close shop.db: %v", err)
	}

	cfg := "target:\n  type: sqlite\n  database: shop.db\n" + extra
	if err := os.WriteFile(filepath.Join(tmpDir, "lumen.yaml"), []byte(cfg), 0o600); err != nil {
		t.Fatalf("failed to create lumen.yaml: %v", err)
	}

	docs := `models:
  - name: orders
    description: One row per order
    columns:
      - name: amount
        description: Order total in EUR
`
	if err := os.WriteFile(filepath.Join(tmpDir, "lumen-docs.yaml"), []byte(docs), 0o600); err != nil {
		t.Fatalf("failed to create lumen-docs.yaml: %v", err)
	}

	return tmpDir
}

// Run executes cmd with args and returns its stdout and stderr.
func Run(t *testing.T, cmd *cobra.Command, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
