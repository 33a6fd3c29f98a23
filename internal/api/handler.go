package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/querybridge/querybridge/internal/config"
	"github.com/querybridge/querybridge/internal/dbfile"
	"github.com/querybridge/querybridge/internal/history"
	"github.com/querybridge/querybridge/internal/nl2sql"
	"github.com/querybridge/querybridge/internal/observability"
	"github.com/querybridge/querybridge/internal/pipeline"
	"github.com/querybridge/querybridge/internal/query"
)

type ReadinessCheck func(ctx context.Context) error

// QueryRunner is the question and statement pipeline.
type QueryRunner interface {
	Ask(ctx context.Context, in pipeline.AskInput) (pipeline.AskOutput, error)
	Run(ctx context.Context, in pipeline.RunInput) (query.Outcome, error)
	Fetch(ctx context.Context, in pipeline.RunInput) (query.Result, error)
}

type SchemaAdmin interface {
	CreateTable(ctx context.Context, databasePath, tableName string, columns []string) error
	InsertRows(ctx context.Context, databasePath, tableName string, rows [][]string) (int, error)
}

type ResultExporter interface {
	Export(ctx context.Context, database, sqlText string, result query.Result) (history.Export, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Pipeline          QueryRunner
	SchemaAdmin       SchemaAdmin
	Translator        nl2sql.Translator
	History           history.Store
	Exporter          ResultExporter
	UI                http.Handler
}

type server struct {
	cfg     config.Config
	deps    Dependencies
	dialect dbfile.Dialect
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	dialect, err := dbfile.ParseDialect(cfg.Storage.Engine)
	if err != nil {
		dialect = dbfile.SQLite
	}
	s := &server{cfg: cfg, deps: deps, dialect: dialect}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"POST /v1/directories", s.handleCreateDirectory},
		{"GET /v1/databases", s.handleListDatabases},
		{"GET /v1/databases/{database}/tables", s.handleListTables},
		{"POST /v1/databases/{database}/tables", s.handleCreateTable},
		{"POST /v1/databases/{database}/tables/{table}/rows", s.handleInsertRows},
		{"POST /v1/databases/{database}/export", s.handleExport},
		{"POST /v1/ask", s.handleAsk},
		{"POST /v1/query", s.handleQuery},
		{"POST /v1/query/translate", s.handleTranslate},
		{"GET /v1/history", s.handleListHistory},
		{"GET /v1/history/{id}", s.handleGetHistory},
	}

	protected := http.NewServeMux()
	for _, route := range routes {
		protected.HandleFunc(route.pattern, route.handler)
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for _, route := range routes {
		mux.Handle(route.pattern, protectedHandler)
	}
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckDataDir verifies the default data directory exists and is a directory.
func CheckDataDir(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		info, err := os.Stat(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("data directory %q: %w", cfg.Storage.DataDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("data directory %q is not a directory", cfg.Storage.DataDir)
		}
		return nil
	}
}

func CheckHistory(store history.Store) ReadinessCheck {
	if store == nil {
		return nil
	}
	return store.HealthCheck
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.Export.Enabled {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
