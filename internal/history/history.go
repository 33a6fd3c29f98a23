// Package history records each question and statement run together with its
// outcome, and the result sets exported to object storage.
package history

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("history: not found")

type Source string

const (
	SourceAsk   Source = "ask"
	SourceQuery Source = "query"
)

type Entry struct {
	ID         string    `json:"id"`
	Source     Source    `json:"source"`
	Directory  string    `json:"directory"`
	Database   string    `json:"database"`
	Question   string    `json:"question,omitempty"`
	SQL        string    `json:"sql"`
	OK         bool      `json:"ok"`
	RowCount   int       `json:"row_count"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

type Export struct {
	ID        string    `json:"id"`
	Database  string    `json:"database"`
	SQL       string    `json:"sql"`
	ObjectKey string    `json:"object_key"`
	RowCount  int       `json:"row_count"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	HealthCheck(ctx context.Context) error
	Record(ctx context.Context, entry Entry) (Entry, error)
	List(ctx context.Context, limit int) ([]Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	RecordExport(ctx context.Context, export Export) (Export, error)
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ClampLimit maps non-positive values to the default and caps the rest.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
