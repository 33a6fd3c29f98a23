package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/querybridge/querybridge/internal/catalog"
	"github.com/querybridge/querybridge/internal/dbfile"
	"github.com/querybridge/querybridge/internal/history"
	"github.com/querybridge/querybridge/internal/nl2sql"
	"github.com/querybridge/querybridge/internal/query"
	"github.com/querybridge/querybridge/internal/query/filedb"
	"github.com/querybridge/querybridge/internal/schema"
)

func TestAskCountsStudentsEndToEnd(t *testing.T) {
	dir := seedSchool(t, 5)
	translator := &fakeTranslator{sql: "SELECT COUNT(*) FROM STUDENT;"}
	hist := &recordingHistory{}
	svc := newTestService(translator, hist, Config{ReadOnly: true})

	out, err := svc.Ask(context.Background(), AskInput{
		Directory: dir,
		Database:  "school",
		Question:  "How many entries of records are present?",
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if out.SQL != "SELECT COUNT(*) FROM STUDENT;" {
		t.Fatalf("SQL = %q", out.SQL)
	}
	if !out.Outcome.OK || out.Message != "" {
		t.Fatalf("outcome = %+v message = %q", out.Outcome, out.Message)
	}
	if len(out.Outcome.Rows) != 1 || out.Outcome.Rows[0][0] != int64(5) {
		t.Fatalf("rows = %#v", out.Outcome.Rows)
	}
	if translator.last.Question != "How many entries of records are present?" {
		t.Fatalf("question = %q", translator.last.Question)
	}
	if len(hist.entries) != 1 || hist.entries[0].Source != history.SourceAsk || !hist.entries[0].OK {
		t.Fatalf("history = %+v", hist.entries)
	}
}

func TestAskReportsGenerationFailure(t *testing.T) {
	dir := seedSchool(t, 1)
	svc := newTestService(&fakeTranslator{err: nl2sql.ErrMissingAPIKey}, nil, Config{ReadOnly: true})

	out, err := svc.Ask(context.Background(), AskInput{Directory: dir, Database: "school", Question: "anything"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if out.Message != MessageGenerationFailed || out.SQL != "" || out.Outcome.OK {
		t.Fatalf("out = %+v", out)
	}
}

func TestAskDistinguishesEmptyFromFailed(t *testing.T) {
	dir := seedSchool(t, 2)

	empty := newTestService(&fakeTranslator{sql: `SELECT * FROM STUDENT WHERE CLASS = 'Chemistry'`}, nil, Config{ReadOnly: true})
	out, err := empty.Ask(context.Background(), AskInput{Directory: dir, Database: "school", Question: "q"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if out.Message != MessageNoData || !out.Outcome.OK || !out.Outcome.Empty() {
		t.Fatalf("empty out = %+v", out)
	}

	failed := newTestService(&fakeTranslator{sql: "SELECT * FROM NOPE"}, nil, Config{ReadOnly: true})
	out, err = failed.Ask(context.Background(), AskInput{Directory: dir, Database: "school", Question: "q"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if out.Message != MessageNoData || out.Outcome.OK || out.Outcome.Error == "" {
		t.Fatalf("failed out = %+v", out)
	}
}

func TestAskRejectsWritesInReadOnlyMode(t *testing.T) {
	dir := seedSchool(t, 2)
	svc := newTestService(&fakeTranslator{sql: "DROP TABLE STUDENT"}, nil, Config{ReadOnly: true})

	out, err := svc.Ask(context.Background(), AskInput{Directory: dir, Database: "school", Question: "drop it"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if out.Outcome.OK || out.Outcome.Error != query.ErrStatementNotAllowed.Error() {
		t.Fatalf("outcome = %+v", out.Outcome)
	}

	count, err := svc.Run(context.Background(), RunInput{Directory: dir, Database: "school", SQL: "SELECT COUNT(*) FROM STUDENT"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if count.Rows[0][0] != int64(2) {
		t.Fatalf("table changed, count = %#v", count.Rows[0][0])
	}
}

func TestRunReadOnlyKeepsDataIntact(t *testing.T) {
	svc := newTestService(nil, nil, Config{ReadOnly: true})

	for _, sqlText := range []string{
		"SELECT 1; DELETE FROM STUDENT",
		"WITH x AS (SELECT 1) DELETE FROM STUDENT",
	} {
		dir := seedSchool(t, 2)
		out, err := svc.Run(context.Background(), RunInput{Directory: dir, Database: "school", SQL: sqlText})
		if err != nil {
			t.Fatalf("Run(%q) error = %v", sqlText, err)
		}
		if out.OK || out.Error == "" {
			t.Fatalf("Run(%q) outcome = %+v, want failure", sqlText, out)
		}
		count, err := svc.Run(context.Background(), RunInput{Directory: dir, Database: "school", SQL: "SELECT COUNT(*) FROM STUDENT"})
		if err != nil {
			t.Fatalf("Run(count) error = %v", err)
		}
		if count.Rows[0][0] != int64(2) {
			t.Fatalf("after %q count = %#v, want 2", sqlText, count.Rows[0][0])
		}
	}
}

func TestAskRejectsStatementBatches(t *testing.T) {
	dir := seedSchool(t, 2)
	svc := newTestService(&fakeTranslator{sql: "SELECT COUNT(*) FROM STUDENT; DROP TABLE STUDENT;"}, nil, Config{ReadOnly: false})

	out, err := svc.Ask(context.Background(), AskInput{Directory: dir, Database: "school", Question: "q"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if out.Outcome.OK || out.Outcome.Error != query.ErrMultipleStatements.Error() || out.Message != MessageNoData {
		t.Fatalf("out = %+v", out)
	}
	tables, err := catalog.ListTables(context.Background(), dbfile.SQLite, filepath.Join(dir, "school.db"))
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 1 || tables[0] != "STUDENT" {
		t.Fatalf("tables = %v", tables)
	}
}

func TestMissingDatabaseIsNotCreated(t *testing.T) {
	dir := t.TempDir()
	translator := &fakeTranslator{sql: "SELECT COUNT(*) FROM STUDENT"}
	svc := newTestService(translator, nil, Config{ReadOnly: false})

	if _, err := svc.Ask(context.Background(), AskInput{Directory: dir, Database: "ghost", Question: "q"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("Ask() error = %v, want catalog.ErrNotFound", err)
	}
	if translator.last.Question != "" {
		t.Fatal("translator called for a missing database")
	}
	if _, err := svc.Run(context.Background(), RunInput{Directory: dir, Database: "ghost", SQL: "SELECT 1"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("Run() error = %v, want catalog.ErrNotFound", err)
	}
	if _, err := svc.Fetch(context.Background(), RunInput{Directory: dir, Database: "ghost", SQL: "SELECT 1"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("Fetch() error = %v, want catalog.ErrNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ghost.db")); !os.IsNotExist(err) {
		t.Fatalf("ghost.db created, stat err = %v", err)
	}
}

func TestAskSendsSchemaContextWhenEnabled(t *testing.T) {
	dir := seedSchool(t, 1)
	translator := &fakeTranslator{sql: "SELECT 1"}
	svc := newTestService(translator, nil, Config{ReadOnly: true, SchemaContext: true})

	if _, err := svc.Ask(context.Background(), AskInput{Directory: dir, Database: "school", Question: "q"}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.Contains(translator.last.Instruction, "- Table name: STUDENT (columns: NAME, CLASS, SECTION, MARKS)") {
		t.Fatalf("instruction missing schema context:\n%s", translator.last.Instruction)
	}
}

func TestAskValidatesInput(t *testing.T) {
	svc := newTestService(&fakeTranslator{sql: "SELECT 1"}, nil, Config{ReadOnly: true})
	cases := []AskInput{
		{Directory: t.TempDir(), Database: "school", Question: " "},
		{Directory: "", Database: "school", Question: "q"},
		{Directory: t.TempDir(), Database: "../school", Question: "q"},
	}
	for _, in := range cases {
		if _, err := svc.Ask(context.Background(), in); err == nil {
			t.Fatalf("Ask(%+v) expected error", in)
		}
	}
}

func TestRunAppliesSmallerRowLimit(t *testing.T) {
	dir := seedSchool(t, 5)
	svc := newTestService(nil, nil, Config{ReadOnly: true, RowLimit: 3})

	out, err := svc.Run(context.Background(), RunInput{Directory: dir, Database: "school.db", SQL: "SELECT * FROM STUDENT", RowLimit: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.RowCount != 3 || !out.Truncated {
		t.Fatalf("outcome = %+v", out)
	}
	out, err = svc.Run(context.Background(), RunInput{Directory: dir, Database: "school.db", SQL: "SELECT * FROM STUDENT", RowLimit: 1})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.RowCount != 1 {
		t.Fatalf("row count = %d", out.RowCount)
	}
}

func TestFetchGuardsStatements(t *testing.T) {
	dir := seedSchool(t, 2)
	svc := newTestService(nil, nil, Config{ReadOnly: true})

	if _, err := svc.Fetch(context.Background(), RunInput{Directory: dir, Database: "school", SQL: "DELETE FROM STUDENT"}); !errors.Is(err, query.ErrStatementNotAllowed) {
		t.Fatalf("Fetch() error = %v", err)
	}
	result, err := svc.Fetch(context.Background(), RunInput{Directory: dir, Database: "school", SQL: "SELECT NAME FROM STUDENT"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
}

func newTestService(translator nl2sql.Translator, hist history.Store, cfg Config) *Service {
	cfg.Dialect = dbfile.SQLite
	return NewService(cfg, translator, filedb.NewEngine(dbfile.SQLite, 5*time.Second), hist, nil)
}

func seedSchool(t *testing.T, count int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "school.db")
	admin := schema.NewAdmin(dbfile.SQLite, nil)
	if err := admin.CreateTable(context.Background(), path, "STUDENT", []string{"NAME", "CLASS", "SECTION", "MARKS"}); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	rows := make([][]string, 0, count)
	for i := 0; i < count; i++ {
		rows = append(rows, []string{"student", "Data Science", "A", "90"})
	}
	if count > 0 {
		if _, err := admin.InsertRows(context.Background(), path, "STUDENT", rows); err != nil {
			t.Fatalf("InsertRows() error = %v", err)
		}
	}
	return dir
}

type fakeTranslator struct {
	sql  string
	err  error
	last nl2sql.Request
}

func (f *fakeTranslator) Translate(_ context.Context, req nl2sql.Request) (nl2sql.Result, error) {
	f.last = req
	if f.err != nil {
		return nl2sql.Result{}, f.err
	}
	return nl2sql.Result{SQL: f.sql, Provider: "fake", Model: "fake-1"}, nil
}

type recordingHistory struct {
	entries []history.Entry
}

func (r *recordingHistory) HealthCheck(context.Context) error { return nil }

func (r *recordingHistory) Record(_ context.Context, entry history.Entry) (history.Entry, error) {
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *recordingHistory) List(context.Context, int) ([]history.Entry, error) {
	return r.entries, nil
}

func (r *recordingHistory) Get(context.Context, string) (history.Entry, error) {
	return history.Entry{}, history.ErrNotFound
}

func (r *recordingHistory) RecordExport(_ context.Context, export history.Export) (history.Export, error) {
	return export, nil
}
