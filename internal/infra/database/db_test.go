package database_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sersweai/leadcrm/internal/infra/database"
)

func TestOpen_SQLiteWALMode(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if db.Dialect() != database.DialectSQLite {
		t.Fatalf("Dialect() = %q; want sqlite", db.Dialect())
	}

	var mode string
	if err := db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode scan error = %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q; want %q", mode, "wal")
	}
}

func TestOpen_ForeignKeysEnabled(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	var fkEnabled int
	if err := db.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("PRAGMA foreign_keys scan error = %v", err)
	}
	if fkEnabled != 1 {
		t.Errorf("foreign_keys = %d; want 1", fkEnabled)
	}
}

func TestOpen_SQLitePrefixStripped(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prefixed.db")
	db, err := database.Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected db file at %q: %v", path, err)
	}
}

func TestOpen_InvalidDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "db.sqlite")
	db, err := database.Open(path)
	if err == nil {
		db.Close()
		t.Fatalf("Open(%q) = nil error; want error for missing parent dir", path)
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, err := database.Open("  "); err == nil {
		t.Fatal("Open(\"\") = nil error; want error")
	}
}

func TestRebind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		dialect database.Dialect
		in      string
		want    string
	}{
		{"sqlite untouched", database.DialectSQLite, "SELECT * FROM leads WHERE id = ?", "SELECT * FROM leads WHERE id = ?"},
		{"postgres numbered", database.DialectPostgres, "UPDATE leads SET status = ? WHERE id = ?", "UPDATE leads SET status = $1 WHERE id = $2"},
		{"quoted literal kept", database.DialectPostgres, "SELECT '?' AS q, id FROM leads WHERE zip = ?", "SELECT '?' AS q, id FROM leads WHERE zip = $1"},
		{"no placeholders", database.DialectPostgres, "SELECT 1", "SELECT 1"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := database.Rebind(tc.dialect, tc.in); got != tc.want {
				t.Errorf("Rebind() = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	if got := database.Placeholders(3); got != "?,?,?" {
		t.Errorf("Placeholders(3) = %q", got)
	}
	if got := database.Placeholders(0); got != "" {
		t.Errorf("Placeholders(0) = %q", got)
	}
}

// mustOpenDB opens a temp SQLite DB and registers cleanup.
func mustOpenDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("database.Open error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
