// Package schema creates text-typed tables and bulk-inserts rows into them.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/querybridge/querybridge/internal/dbfile"
	"github.com/querybridge/querybridge/internal/observability"
)

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrNoColumns         = errors.New("at least one column is required")
	ErrDuplicateColumn   = errors.New("duplicate column name")
	ErrNoRows            = errors.New("at least one row is required")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_ ]{0,62}$`)

type Admin struct {
	Dialect dbfile.Dialect
	Logger  *slog.Logger
}

func NewAdmin(dialect dbfile.Dialect, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Admin{Dialect: dialect, Logger: logger}
}

// ValidateIdentifier trims value and checks it against the accepted table and
// column name shape.
func ValidateIdentifier(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !identifierPattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, value)
	}
	return trimmed, nil
}

// CreateTable creates tableName with every column typed TEXT. Calling it again
// for an existing table leaves that table untouched.
func (a *Admin) CreateTable(ctx context.Context, databasePath, tableName string, columns []string) (err error) {
	defer func() { observability.ObserveAdminOperation("create_table", err) }()

	table, err := ValidateIdentifier(tableName)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return ErrNoColumns
	}
	seen := make(map[string]struct{}, len(columns))
	defs := make([]string, 0, len(columns))
	for _, column := range columns {
		name, err := ValidateIdentifier(column)
		if err != nil {
			return err
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		seen[key] = struct{}{}
		defs = append(defs, quoteIdent(name)+" TEXT")
	}

	db, err := dbfile.Open(ctx, a.Dialect, databasePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	statement := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("create table %q: %w", table, err)
	}
	a.Logger.InfoContext(ctx, "table created",
		slog.String("database", databasePath),
		slog.String("table", table),
		slog.Int("columns", len(defs)),
	)
	return nil
}

// InsertRows inserts every row in one transaction. The placeholder count is
// taken from the first row; any failing row rolls back the whole batch.
func (a *Admin) InsertRows(ctx context.Context, databasePath, tableName string, rows [][]string) (inserted int, err error) {
	defer func() { observability.ObserveAdminOperation("insert_rows", err) }()

	table, err := ValidateIdentifier(tableName)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, ErrNoRows
	}

	db, err := dbfile.Open(ctx, a.Dialect, databasePath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(rows[0])), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), placeholders))
	if err != nil {
		return 0, fmt.Errorf("prepare insert into %q: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	for index, row := range rows {
		if len(row) != len(rows[0]) {
			return 0, fmt.Errorf("insert row %d into %q: expected %d values, got %d", index+1, table, len(rows[0]), len(row))
		}
		args := make([]any, len(row))
		for i, value := range row {
			args[i] = value
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert row %d into %q: %w", index+1, table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert into %q: %w", table, err)
	}

	a.Logger.InfoContext(ctx, "rows inserted",
		slog.String("database", databasePath),
		slog.String("table", table),
		slog.Int("rows", len(rows)),
	)
	return len(rows), nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
