package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/querybridge/querybridge/internal/history"
)

type Repository struct {
	db    *sql.DB
	newID func() string
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, newID: func() string { return uuid.NewString() }}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

func (r *Repository) Record(ctx context.Context, entry history.Entry) (history.Entry, error) {
	if entry.ID == "" {
		entry.ID = r.newID()
	}
	if entry.Source == "" {
		entry.Source = history.SourceQuery
	}

	query := `
INSERT INTO query_history (entry_id, source, directory, database_name, question, sql_text, ok, row_count, error_message, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at`
	var createdAt time.Time
	if err := r.db.QueryRowContext(ctx, query,
		entry.ID,
		string(entry.Source),
		entry.Directory,
		entry.Database,
		entry.Question,
		entry.SQL,
		entry.OK,
		entry.RowCount,
		entry.Error,
		entry.DurationMS,
	).Scan(&createdAt); err != nil {
		return history.Entry{}, fmt.Errorf("record history entry: %w", err)
	}
	entry.CreatedAt = createdAt
	return entry, nil
}

func (r *Repository) List(ctx context.Context, limit int) ([]history.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT entry_id, source, directory, database_name, question, sql_text, ok, row_count, error_message, duration_ms, created_at
FROM query_history
ORDER BY created_at DESC
LIMIT $1`, history.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]history.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

func (r *Repository) Get(ctx context.Context, id string) (history.Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return history.Entry{}, history.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `
SELECT entry_id, source, directory, database_name, question, sql_text, ok, row_count, error_message, duration_ms, created_at
FROM query_history
WHERE entry_id = $1`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.Entry{}, history.ErrNotFound
		}
		return history.Entry{}, fmt.Errorf("get history entry: %w", err)
	}
	return entry, nil
}

func (r *Repository) RecordExport(ctx context.Context, export history.Export) (history.Export, error) {
	if export.ID == "" {
		export.ID = r.newID()
	}
	query := `
INSERT INTO result_export (export_id, database_name, sql_text, object_key, row_count, size_bytes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at`
	var createdAt time.Time
	if err := r.db.QueryRowContext(ctx, query,
		export.ID,
		export.Database,
		export.SQL,
		export.ObjectKey,
		export.RowCount,
		export.SizeBytes,
	).Scan(&createdAt); err != nil {
		return history.Export{}, fmt.Errorf("record export: %w", err)
	}
	export.CreatedAt = createdAt
	return export, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (history.Entry, error) {
	var entry history.Entry
	var source string
	if err := row.Scan(
		&entry.ID,
		&source,
		&entry.Directory,
		&entry.Database,
		&entry.Question,
		&entry.SQL,
		&entry.OK,
		&entry.RowCount,
		&entry.Error,
		&entry.DurationMS,
		&entry.CreatedAt,
	); err != nil {
		return history.Entry{}, err
	}
	entry.Source = history.Source(source)
	return entry, nil
}

var _ history.Store = (*Repository)(nil)
