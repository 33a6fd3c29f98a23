package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/querybridge/querybridge/internal/auth"
	"github.com/querybridge/querybridge/internal/catalog"
	"github.com/querybridge/querybridge/internal/schema"
)

type createTableRequest struct {
	Directory string `json:"directory"`
	TableName string `json:"table_name"`
	// Columns accepts either a JSON array or the comma-separated text the UI
	// sends.
	Columns columnList `json:"columns"`
}

type insertRowsRequest struct {
	Directory string     `json:"directory"`
	Rows      [][]string `json:"rows"`
	Values    string     `json:"values"`
}

func (s *server) handleListTables(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAnyRole(r.Context(), auth.RoleQueryReader, auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	database := r.PathValue("database")
	_, path, ok := s.databaseOrError(w, r, r.URL.Query().Get("directory"), database)
	if !ok {
		return
	}

	var (
		payload any
		err     error
	)
	if r.URL.Query().Get("columns") == "true" {
		payload, err = catalog.DescribeTables(r.Context(), s.dialect, path)
	} else {
		payload, err = catalog.ListTables(r.Context(), s.dialect, path)
	}
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeDatabaseNotFound(w, r, database)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "CATALOG_ERROR", "failed to list tables", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"database": database,
		"tables":   payload,
	})
}

func (s *server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	if s.deps.SchemaAdmin == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ADMIN_NOT_CONFIGURED", "schema admin is not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req createTableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid create table request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.TableName) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_NAME_REQUIRED", "table_name is required", false, nil)
		return
	}
	database := r.PathValue("database")
	_, path, ok := s.databaseOrError(w, r, req.Directory, database)
	if !ok {
		return
	}

	if err := s.deps.SchemaAdmin.CreateTable(r.Context(), path, req.TableName, req.Columns); err != nil {
		writeAdminError(w, r, "failed to create table", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"database":   database,
		"table_name": strings.TrimSpace(req.TableName),
		"columns":    req.Columns,
		"message":    "Table created successfully",
	})
}

func (s *server) handleInsertRows(w http.ResponseWriter, r *http.Request) {
	if s.deps.SchemaAdmin == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ADMIN_NOT_CONFIGURED", "schema admin is not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req insertRowsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid insert rows request body", false, map[string]any{"details": err.Error()})
		return
	}
	rows := req.Rows
	if len(rows) == 0 && strings.TrimSpace(req.Values) != "" {
		rows = schema.ParseRows(req.Values)
	}
	if len(rows) == 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "ROWS_REQUIRED", "rows or values is required", false, nil)
		return
	}
	database := r.PathValue("database")
	_, path, ok := s.databaseOrError(w, r, req.Directory, database)
	if !ok {
		return
	}

	table := r.PathValue("table")
	inserted, err := s.deps.SchemaAdmin.InsertRows(r.Context(), path, table, rows)
	if err != nil {
		writeAdminError(w, r, "failed to insert rows", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"database": database,
		"table":    table,
		"inserted": inserted,
		"message":  "Values inserted successfully",
	})
}

func writeAdminError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, schema.ErrInvalidIdentifier):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_IDENTIFIER", err.Error(), false, nil)
	case errors.Is(err, schema.ErrNoColumns), errors.Is(err, schema.ErrDuplicateColumn), errors.Is(err, schema.ErrNoRows):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SCHEMA_REQUEST", err.Error(), false, nil)
	default:
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "ADMIN_OPERATION_FAILED", message, false, map[string]any{"details": err.Error()})
	}
}
