package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/querybridge/querybridge/internal/observability"
	"github.com/querybridge/querybridge/internal/prompt"
)

// Complete renders tmpl with the optional table context, submits it with the
// question and returns the trimmed statement.
func Complete(ctx context.Context, translator Translator, question string, tmpl prompt.Template, tables []prompt.TableContext) (Result, error) {
	if translator == nil {
		return Result{}, errors.New("completion backend is not configured")
	}
	if strings.TrimSpace(question) == "" {
		return Result{}, errors.New("question is required")
	}

	start := time.Now()
	result, err := translator.Translate(ctx, Request{
		Instruction: tmpl.Render(tables),
		Question:    question,
	})
	provider := result.Provider
	if provider == "" {
		provider = "unknown"
	}
	observability.ObserveTranslation(provider, err, time.Since(start))
	if err != nil {
		return Result{}, fmt.Errorf("translate question: %w", err)
	}
	result.SQL = strings.TrimSpace(result.SQL)
	return result, nil
}

// Generate never fails: backend errors are logged and reported as an empty
// statement. An empty string therefore means "no statement available".
func Generate(ctx context.Context, translator Translator, logger *slog.Logger, question string, tmpl prompt.Template, tables []prompt.TableContext) string {
	result, err := Complete(ctx, translator, question, tmpl, tables)
	if err != nil {
		if logger == nil {
			logger = observability.NopLogger()
		}
		logger.WarnContext(ctx, "completion backend call failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("prompt_kind", string(tmpl.Kind)),
			slog.Any("error", err),
		)
		return ""
	}
	return result.SQL
}
