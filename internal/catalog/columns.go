package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/querybridge/querybridge/internal/dbfile"
)

type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func listColumns(ctx context.Context, query queryFunc, dialect dbfile.Dialect, table string) ([]string, error) {
	rows, err := query(ctx, dialect.ColumnsSQL(), table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return columns, nil
}

// RequireFile reports ErrNotFound unless path is an existing regular file.
// Callers use it before opening a database that must not be created.
func RequireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: database %q", ErrNotFound, path)
		}
		return fmt.Errorf("stat database %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: database %q", ErrNotFound, path)
	}
	return nil
}
