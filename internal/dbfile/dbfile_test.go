package dbfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseDialect(t *testing.T) {
	for input, want := range map[string]Dialect{"": SQLite, "sqlite": SQLite, " DuckDB ": DuckDB} {
		got, err := ParseDialect(input)
		if err != nil {
			t.Fatalf("ParseDialect(%q) error = %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseDialect(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := ParseDialect("oracle"); !errors.Is(err, ErrUnknownDialect) {
		t.Fatalf("ParseDialect(oracle) error = %v", err)
	}
}

func TestPathAppendsExtensionAndRejectsTraversal(t *testing.T) {
	got, err := Path("/data", "school", SQLite)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if got != filepath.Join("/data", "school.db") {
		t.Fatalf("Path() = %q", got)
	}
	got, err = Path("/data", "school.duckdb", DuckDB)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if got != filepath.Join("/data", "school.duckdb") {
		t.Fatalf("Path() = %q", got)
	}

	for _, name := range []string{"", "..", "../etc/passwd", "a/b", `a\b`} {
		if _, err := Path("/data", name, SQLite); !errors.Is(err, ErrInvalidDatabaseName) {
			t.Fatalf("Path(%q) error = %v, want ErrInvalidDatabaseName", name, err)
		}
	}
}

func TestOpenCreatesSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	db, err := Open(context.Background(), SQLite, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(`CREATE TABLE "T" ("A" TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}

	rows, err := db.Query(SQLite.ListTablesSQL())
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		names = append(names, name)
	}
	if len(names) != 1 || names[0] != "T" {
		t.Fatalf("tables = %v", names)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), SQLite, " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenReadOnlyRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "school.db")
	db, err := Open(context.Background(), SQLite, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE "T" ("A" TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	_ = db.Close()

	ro, err := OpenReadOnly(context.Background(), SQLite, path)
	if err != nil {
		t.Fatalf("OpenReadOnly() error = %v", err)
	}
	defer func() { _ = ro.Close() }()

	if _, err := ro.Exec(`INSERT INTO "T" VALUES ('x')`); err == nil {
		t.Fatal("insert succeeded on read-only handle")
	}
	var count int
	if err := ro.QueryRow(`SELECT COUNT(*) FROM "T"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d", count)
	}
}

func TestOpenReadOnlyRequiresExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	if _, err := OpenReadOnly(context.Background(), SQLite, path); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("read-only open created the file, stat err = %v", err)
	}
}

func TestReadOnlyDSN(t *testing.T) {
	if got := DuckDB.readOnlyDSN("/data/school.duckdb"); got != "/data/school.duckdb?access_mode=READ_ONLY" {
		t.Fatalf("duckdb dsn = %q", got)
	}
	if got := fileURI("/data/a?b#c%d.db"); got != "file:/data/a%3fb%23c%25d.db" {
		t.Fatalf("fileURI() = %q", got)
	}
}
