package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/querybridge/querybridge/internal/auth"
	"github.com/querybridge/querybridge/internal/history"
)

func (s *server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "HISTORY_DISABLED", "query history is not enabled", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleQueryReader, auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	limit := history.DefaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = history.ClampLimit(parsed)
	}

	entries, err := s.deps.History.List(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to list history", true, map[string]any{"details": err.Error()})
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "limit": limit})
}

func (s *server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "HISTORY_DISABLED", "query history is not enabled", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleQueryReader, auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	entry, err := s.deps.History.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "HISTORY_NOT_FOUND", "history entry not found", false, map[string]any{"id": r.PathValue("id")})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to load history entry", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
