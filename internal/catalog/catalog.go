// Package catalog enumerates database files in a directory and the tables
// inside one database file.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/querybridge/querybridge/internal/dbfile"
)

var ErrNotFound = errors.New("catalog: not found")

type TableInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// EnsureDirectory creates path and any missing parents.
func EnsureDirectory(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("directory path is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", path, err)
	}
	return nil
}

// ListDatabases returns the regular files in dir carrying the dialect
// extension, sorted by name. Subdirectories are not searched.
func ListDatabases(dir string, dialect dbfile.Dialect) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: directory %q", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("read directory %q: %w", dir, err)
	}

	names := make([]string, 0)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.HasSuffix(entry.Name(), dialect.Extension()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListTables returns the table names stored in databasePath. The file must
// already exist; listing never creates one.
func ListTables(ctx context.Context, dialect dbfile.Dialect, databasePath string) ([]string, error) {
	if err := RequireFile(databasePath); err != nil {
		return nil, err
	}
	db, err := dbfile.Open(ctx, dialect, databasePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, dialect.ListTablesSQL())
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}
	return tables, nil
}

// DescribeTables lists every table with its column names in declaration order.
func DescribeTables(ctx context.Context, dialect dbfile.Dialect, databasePath string) ([]TableInfo, error) {
	tables, err := ListTables(ctx, dialect, databasePath)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return []TableInfo{}, nil
	}

	db, err := dbfile.Open(ctx, dialect, databasePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	out := make([]TableInfo, 0, len(tables))
	for _, table := range tables {
		columns, err := listColumns(ctx, db.QueryContext, dialect, table)
		if err != nil {
			return nil, err
		}
		out = append(out, TableInfo{Name: table, Columns: columns})
	}
	return out, nil
}
