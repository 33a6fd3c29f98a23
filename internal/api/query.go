package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/querybridge/querybridge/internal/auth"
	"github.com/querybridge/querybridge/internal/catalog"
	"github.com/querybridge/querybridge/internal/export"
	"github.com/querybridge/querybridge/internal/pipeline"
	"github.com/querybridge/querybridge/internal/query"
)

type queryRequest struct {
	Directory string `json:"directory"`
	Database  string `json:"database"`
	SQL       string `json:"sql"`
	RowLimit  int    `json:"row_limit"`
}

type exportRequest struct {
	Directory string `json:"directory"`
	SQL       string `json:"sql"`
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleQueryReader, auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if req.RowLimit < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ROW_LIMIT", "row_limit must be >= 0", false, nil)
		return
	}
	if err := query.Guard(req.SQL, s.cfg.Query.ReadOnly); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", err.Error(), false, nil)
		return
	}
	dir, _, ok := s.databaseOrError(w, r, req.Directory, req.Database)
	if !ok {
		return
	}

	outcome, err := s.deps.Pipeline.Run(r.Context(), pipeline.RunInput{
		Directory: dir,
		Database:  req.Database,
		SQL:       req.SQL,
		RowLimit:  req.RowLimit,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeDatabaseNotFound(w, r, req.Database)
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_QUERY_REQUEST", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exporter == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "EXPORT_DISABLED", export.ErrDisabled.Error(), false, nil)
		return
	}
	if s.deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleQueryReader, auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req exportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	database := r.PathValue("database")
	dir, _, ok := s.databaseOrError(w, r, req.Directory, database)
	if !ok {
		return
	}

	result, err := s.deps.Pipeline.Fetch(r.Context(), pipeline.RunInput{Directory: dir, Database: database, SQL: req.SQL})
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeDatabaseNotFound(w, r, database)
			return
		}
		if errors.Is(err, query.ErrStatementNotAllowed) || errors.Is(err, query.ErrMultipleStatements) {
			writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "QUERY_FAILED", "query execution failed", false, map[string]any{"details": err.Error()})
		return
	}

	exported, err := s.deps.Exporter.Export(r.Context(), database, req.SQL, result)
	if err != nil {
		if errors.Is(err, export.ErrDisabled) {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "EXPORT_DISABLED", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_FAILED", "failed to export result", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, exported)
}
