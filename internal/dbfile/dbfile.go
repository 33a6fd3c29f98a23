// Package dbfile opens single-file databases. SQLite is the default engine;
// DuckDB files are supported as an alternate dialect.
//
// Build modes for SQLite:
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - -tags cgo_sqlite: mattn/go-sqlite3
package dbfile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
)

var (
	ErrUnknownDialect      = errors.New("unknown database dialect")
	ErrInvalidDatabaseName = errors.New("invalid database name")
)

type Dialect string

const (
	SQLite Dialect = "sqlite"
	DuckDB Dialect = "duckdb"
)

func ParseDialect(value string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(value))) {
	case "", SQLite:
		return SQLite, nil
	case DuckDB:
		return DuckDB, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, value)
	}
}

// Extension is the file suffix that marks a database file of this dialect.
func (d Dialect) Extension() string {
	if d == DuckDB {
		return ".duckdb"
	}
	return ".db"
}

func (d Dialect) driverName() string {
	if d == DuckDB {
		return "duckdb"
	}
	return sqliteDriverName
}

// ListTablesSQL selects user table names from the engine catalog.
func (d Dialect) ListTablesSQL() string {
	if d == DuckDB {
		return `SELECT table_name FROM information_schema.tables WHERE table_type = 'BASE TABLE' ORDER BY table_name`
	}
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
}

// ColumnsSQL selects the column names of one table in declaration order. The
// table name is bound as the single parameter.
func (d Dialect) ColumnsSQL() string {
	if d == DuckDB {
		return `SELECT column_name FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`
	}
	return `SELECT name FROM pragma_table_info(?) ORDER BY cid`
}

// DriverType reports which SQLite implementation was compiled in.
func DriverType() string {
	return sqliteDriverType
}

// Path joins dir and name into a database file path, appending the dialect
// extension unless name already carries it.
func Path(dir, name string, dialect Dialect) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDatabaseName, name)
	}
	if !strings.HasSuffix(name, dialect.Extension()) {
		name += dialect.Extension()
	}
	return filepath.Join(dir, name), nil
}

// Open opens a handle limited to one connection. The file is created on first
// write if it does not exist yet.
func Open(ctx context.Context, dialect Dialect, path string) (*sql.DB, error) {
	return open(ctx, dialect, path, path)
}

// OpenReadOnly opens an existing file with writes disabled by the engine, so
// statements that modify data fail whatever keyword they start with. A
// missing file is an error; it is never created.
func OpenReadOnly(ctx context.Context, dialect Dialect, path string) (*sql.DB, error) {
	return open(ctx, dialect, path, dialect.readOnlyDSN(path))
}

func (d Dialect) readOnlyDSN(path string) string {
	if d == DuckDB {
		return path + "?access_mode=READ_ONLY"
	}
	return sqliteReadOnlyDSN(fileURI(path))
}

// fileURI turns path into an SQLite URI filename, escaping the characters
// that would otherwise start the query string or fragment.
func fileURI(path string) string {
	escaped := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(filepath.ToSlash(path))
	return "file:" + escaped
}

func open(ctx context.Context, dialect Dialect, path, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database %q: %w", dialect, path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database %q: %w", dialect, path, err)
	}
	return db, nil
}
