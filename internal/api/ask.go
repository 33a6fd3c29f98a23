package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/querybridge/querybridge/internal/auth"
	"github.com/querybridge/querybridge/internal/catalog"
	"github.com/querybridge/querybridge/internal/nl2sql"
	"github.com/querybridge/querybridge/internal/observability"
	"github.com/querybridge/querybridge/internal/pipeline"
	"github.com/querybridge/querybridge/internal/prompt"
)

type askRequest struct {
	Directory string `json:"directory"`
	Database  string `json:"database"`
	Question  string `json:"question"`
}

type translateRequest struct {
	Question   string `json:"question"`
	PromptKind string `json:"prompt_kind"`
}

type translateResponse struct {
	SQL        string `json:"sql"`
	PromptKind string `json:"prompt_kind"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleQueryReader, auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	dir, _, ok := s.databaseOrError(w, r, req.Directory, req.Database)
	if !ok {
		return
	}

	out, err := s.deps.Pipeline.Ask(r.Context(), pipeline.AskInput{
		Directory: dir,
		Database:  req.Database,
		Question:  req.Question,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeDatabaseNotFound(w, r, req.Database)
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ASK_REQUEST", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTranslate returns the generated statement without running it.
func (s *server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATOR_NOT_CONFIGURED", "completion backend is not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r.Context(), auth.RoleQueryReader, auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req translateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translate request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	tmpl, err := prompt.ByKind(prompt.Kind(req.PromptKind))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_PROMPT_KIND", err.Error(), false, nil)
		return
	}

	result, err := nl2sql.Complete(r.Context(), s.deps.Translator, req.Question, tmpl, nil)
	if err != nil {
		if s.deps.Logger != nil {
			s.deps.Logger.WarnContext(r.Context(), "translate request failed",
				slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
				slog.String("prompt_kind", string(tmpl.Kind)),
				slog.Any("error", err),
			)
		}
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATION_FAILED", "failed to generate SQL from the question", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{
		SQL:        result.SQL,
		PromptKind: string(tmpl.Kind),
		Provider:   result.Provider,
		Model:      result.Model,
	})
}
