// Package export turns a query result into a Parquet object in the
// configured object store and records it in history.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/querybridge/querybridge/internal/history"
	"github.com/querybridge/querybridge/internal/observability"
	"github.com/querybridge/querybridge/internal/query"
	"github.com/querybridge/querybridge/internal/storage"
)

const ContentType = "application/vnd.apache.parquet"

var ErrDisabled = errors.New("result export is not enabled")

type Exporter struct {
	Store   storage.ObjectStore
	History history.Store
	Logger  *slog.Logger
	Now     func() time.Time
	NewID   func() string
}

func NewExporter(store storage.ObjectStore, historyStore history.Store, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Exporter{
		Store:   store,
		History: historyStore,
		Logger:  logger,
		Now:     time.Now,
		NewID:   func() string { return uuid.NewString() },
	}
}

// Export uploads result under exports/<database>/<date>/<id>.parquet. When a
// history store is configured the upload is recorded there as well, and the
// object is removed again if recording fails.
func (e *Exporter) Export(ctx context.Context, database, sqlText string, result query.Result) (out history.Export, err error) {
	defer func() { observability.ObserveAdminOperation("export", err) }()

	if e == nil || e.Store == nil {
		return history.Export{}, ErrDisabled
	}
	data, err := EncodeResult(result.Columns, result.Rows)
	if err != nil {
		return history.Export{}, err
	}

	id := e.NewID()
	key, err := storage.BuildExportPath(database, e.Now(), id)
	if err != nil {
		return history.Export{}, err
	}
	info, err := e.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: ContentType})
	if err != nil {
		return history.Export{}, fmt.Errorf("upload export: %w", err)
	}

	out = history.Export{
		ID:        id,
		Database:  database,
		SQL:       sqlText,
		ObjectKey: key,
		RowCount:  len(result.Rows),
		SizeBytes: info.Size,
		CreatedAt: e.Now().UTC(),
	}
	if e.History != nil {
		recorded, err := e.History.RecordExport(ctx, out)
		if err != nil {
			if delErr := e.Store.Delete(ctx, key); delErr != nil {
				e.Logger.WarnContext(ctx, "remove unrecorded export failed", slog.String("object_key", key), slog.Any("error", delErr))
			}
			return history.Export{}, fmt.Errorf("record export: %w", err)
		}
		out = recorded
	}

	e.Logger.InfoContext(ctx, "result exported",
		slog.String("database", database),
		slog.String("object_key", key),
		slog.Int("rows", out.RowCount),
		slog.Int64("size_bytes", out.SizeBytes),
	)
	return out, nil
}
