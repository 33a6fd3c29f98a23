// Package pipeline runs the question -> statement -> rows flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/querybridge/querybridge/internal/catalog"
	"github.com/querybridge/querybridge/internal/dbfile"
	"github.com/querybridge/querybridge/internal/history"
	"github.com/querybridge/querybridge/internal/nl2sql"
	"github.com/querybridge/querybridge/internal/observability"
	"github.com/querybridge/querybridge/internal/prompt"
	"github.com/querybridge/querybridge/internal/query"
)

const (
	MessageGenerationFailed = "Failed to generate SQL query from the given question."
	MessageNoData           = "No data found or an error occurred."
)

type Config struct {
	Dialect       dbfile.Dialect
	ReadOnly      bool
	RowLimit      int
	SchemaContext bool
}

type Service struct {
	Config     Config
	Translator nl2sql.Translator
	Engine     query.Engine
	History    history.Store
	Logger     *slog.Logger
}

func NewService(cfg Config, translator nl2sql.Translator, engine query.Engine, historyStore history.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		Config:     cfg,
		Translator: translator,
		Engine:     engine,
		History:    historyStore,
		Logger:     logger,
	}
}

type AskInput struct {
	Directory string
	Database  string
	Question  string
}

type AskOutput struct {
	SQL     string        `json:"sql"`
	Outcome query.Outcome `json:"outcome"`
	Message string        `json:"message,omitempty"`
}

type RunInput struct {
	Directory string
	Database  string
	SQL       string
	RowLimit  int
}

// DatabasePath resolves database inside directory for the configured dialect.
func (s *Service) DatabasePath(directory, database string) (string, error) {
	if strings.TrimSpace(directory) == "" {
		return "", fmt.Errorf("directory is required")
	}
	return dbfile.Path(directory, database, s.Config.Dialect)
}

// existingDatabase resolves the path like DatabasePath and fails with
// catalog.ErrNotFound when no such file exists. Statements never create a
// database file.
func (s *Service) existingDatabase(directory, database string) (string, error) {
	databasePath, err := s.DatabasePath(directory, database)
	if err != nil {
		return "", err
	}
	if err := catalog.RequireFile(databasePath); err != nil {
		return "", err
	}
	return databasePath, nil
}

// Ask translates question and runs the statement. Translation and execution
// failures are reported through the output, not the error; the error is kept
// for invalid input and a missing database.
func (s *Service) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	if strings.TrimSpace(in.Question) == "" {
		return AskOutput{}, fmt.Errorf("question is required")
	}
	databasePath, err := s.existingDatabase(in.Directory, in.Database)
	if err != nil {
		return AskOutput{}, err
	}

	var tables []prompt.TableContext
	if s.Config.SchemaContext {
		tables = s.schemaContext(ctx, databasePath)
	}

	sqlText := nl2sql.Generate(ctx, s.Translator, s.Logger, in.Question, prompt.Query, tables)
	if sqlText == "" {
		out := AskOutput{
			Outcome: query.Outcome{OK: false, Error: "no statement generated"},
			Message: MessageGenerationFailed,
		}
		s.record(ctx, history.SourceAsk, in.Directory, in.Database, in.Question, "", out.Outcome)
		return out, nil
	}

	outcome := s.run(ctx, sqlText, databasePath, s.Config.RowLimit)
	out := AskOutput{SQL: sqlText, Outcome: outcome}
	if !outcome.OK || outcome.Empty() {
		out.Message = MessageNoData
	}
	s.record(ctx, history.SourceAsk, in.Directory, in.Database, in.Question, sqlText, outcome)
	return out, nil
}

// Run executes a caller-supplied statement under the same guard as Ask.
func (s *Service) Run(ctx context.Context, in RunInput) (query.Outcome, error) {
	databasePath, err := s.existingDatabase(in.Directory, in.Database)
	if err != nil {
		return query.Outcome{}, err
	}
	if strings.TrimSpace(in.SQL) == "" {
		return query.Outcome{}, fmt.Errorf("sql is required")
	}
	limit := s.Config.RowLimit
	if in.RowLimit > 0 && (limit <= 0 || in.RowLimit < limit) {
		limit = in.RowLimit
	}
	outcome := s.run(ctx, in.SQL, databasePath, limit)
	s.record(ctx, history.SourceQuery, in.Directory, in.Database, "", in.SQL, outcome)
	return outcome, nil
}

// Fetch runs a guarded statement and returns the raw result for export.
func (s *Service) Fetch(ctx context.Context, in RunInput) (query.Result, error) {
	databasePath, err := s.existingDatabase(in.Directory, in.Database)
	if err != nil {
		return query.Result{}, err
	}
	if err := query.Guard(in.SQL, s.Config.ReadOnly); err != nil {
		return query.Result{}, err
	}
	start := time.Now()
	result, err := s.Engine.Execute(ctx, query.Request{
		SQL:          in.SQL,
		DatabasePath: databasePath,
		RowLimit:     s.Config.RowLimit,
		ReadOnly:     s.Config.ReadOnly,
	})
	observability.ObserveExecution(len(result.Rows), err, time.Since(start))
	return result, err
}

func (s *Service) run(ctx context.Context, sqlText, databasePath string, rowLimit int) query.Outcome {
	if err := query.Guard(sqlText, s.Config.ReadOnly); err != nil {
		observability.ObserveExecution(0, err, 0)
		s.Logger.WarnContext(ctx, "statement rejected",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("sql", sqlText),
			slog.Any("error", err),
		)
		return query.NewOutcome(query.Result{}, err)
	}

	start := time.Now()
	result, err := s.Engine.Execute(ctx, query.Request{
		SQL:          sqlText,
		DatabasePath: databasePath,
		RowLimit:     rowLimit,
		ReadOnly:     s.Config.ReadOnly,
	})
	observability.ObserveExecution(len(result.Rows), err, time.Since(start))
	if err != nil {
		s.Logger.WarnContext(ctx, "statement execution failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("database", databasePath),
			slog.String("sql", sqlText),
			slog.Any("error", err),
		)
	}
	return query.NewOutcome(result, err)
}

func (s *Service) schemaContext(ctx context.Context, databasePath string) []prompt.TableContext {
	infos, err := catalog.DescribeTables(ctx, s.Config.Dialect, databasePath)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			s.Logger.WarnContext(ctx, "collect schema context failed", slog.String("database", databasePath), slog.Any("error", err))
		}
		return nil
	}
	tables := make([]prompt.TableContext, 0, len(infos))
	for _, info := range infos {
		tables = append(tables, prompt.TableContext{TableName: info.Name, Columns: info.Columns})
	}
	return tables
}

func (s *Service) record(ctx context.Context, source history.Source, directory, database, question, sqlText string, outcome query.Outcome) {
	if s.History == nil {
		return
	}
	_, err := s.History.Record(ctx, history.Entry{
		Source:     source,
		Directory:  directory,
		Database:   database,
		Question:   question,
		SQL:        sqlText,
		OK:         outcome.OK,
		RowCount:   outcome.RowCount,
		Error:      outcome.Error,
		DurationMS: outcome.DurationMS,
	})
	if err != nil {
		s.Logger.WarnContext(ctx, "record history failed", slog.Any("error", err))
	}
}
