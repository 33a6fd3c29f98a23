package querybridgectl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DisableStyling()
}

type recordedRequest struct {
	method string
	path   string
	query  string
	apiKey string
	body   map[string]any
}

func newRecordingServer(t *testing.T, status int, response string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	got := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.apiKey = r.Header.Get("X-API-Key")
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &got.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestRunHealthCommand(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"status":"ok"}`)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"--base-url", srv.URL,
		"--api-key", "k1",
		"health",
	}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if got.method != http.MethodGet || got.path != "/v1/health" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if got.apiKey != "k1" {
		t.Fatalf("api key = %q", got.apiKey)
	}
	if !strings.Contains(stdout.String(), `"status": "ok"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunDatabasesRendersTable(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"directory":"/data","databases":["a.db","b.db"]}`)

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "--directory", "/data", "databases"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.path != "/v1/databases" || got.query != "directory=%2Fdata" {
		t.Fatalf("request = %s?%s", got.path, got.query)
	}
	for _, want := range []string{"DATABASE", "a.db", "b.db"} {
		if !strings.Contains(stdout.String(), want) {
			t.Fatalf("stdout missing %q: %s", want, stdout.String())
		}
	}
}

func TestRunDatabasesJSONOutput(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusOK, `{"directory":"/data","databases":["a.db"]}`)

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "--json", "databases"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	var decoded map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &decoded); err != nil {
		t.Fatalf("stdout is not JSON: %v, %s", err, stdout.String())
	}
}

func TestRunCreateTableSendsColumns(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusCreated, `{"message":"Table created successfully"}`)

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "create-table", "school", "STUDENT", "NAME, CLASS"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.method != http.MethodPost || got.path != "/v1/databases/school/tables" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if got.body["table_name"] != "STUDENT" || got.body["columns"] != "NAME, CLASS" {
		t.Fatalf("body = %#v", got.body)
	}
	if !strings.Contains(stdout.String(), "Table created successfully") {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunInsertReadsStdinAndFile(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusCreated, `{"inserted":2,"message":"Values inserted successfully"}`)

	code := Run(context.Background(), []string{"--base-url", srv.URL, "insert", "school", "STUDENT", "-"}, Options{
		Stdin: strings.NewReader("a,1\nb,2\n"),
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.path != "/v1/databases/school/tables/STUDENT/rows" || got.body["values"] != "a,1\nb,2\n" {
		t.Fatalf("request = %s body=%#v", got.path, got.body)
	}

	rowsFile := filepath.Join(t.TempDir(), "rows.csv")
	if err := os.WriteFile(rowsFile, []byte("c,3"), 0o600); err != nil {
		t.Fatalf("write rows file: %v", err)
	}
	code = Run(context.Background(), []string{"--base-url", srv.URL, "insert", "school", "STUDENT", rowsFile}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.body["values"] != "c,3" {
		t.Fatalf("body = %#v", got.body)
	}

	code = Run(context.Background(), []string{"--base-url", srv.URL, "insert", "school", "STUDENT", filepath.Join(t.TempDir(), "missing")}, Options{})
	if code != 1 {
		t.Fatalf("missing file exit code = %d, want 1", code)
	}
}

func TestRunAskRendersRows(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"sql":"SELECT COUNT(*) FROM STUDENT;","outcome":{"ok":true,"columns":["COUNT(*)"],"rows":[[5]],"row_count":1}}`)

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "ask", "school", "How", "many", "entries?"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.path != "/v1/ask" || got.body["question"] != "How many entries?" || got.body["database"] != "school" {
		t.Fatalf("request = %s body=%#v", got.path, got.body)
	}
	out := stdout.String()
	if !strings.Contains(out, "SELECT COUNT(*) FROM STUDENT;") || !strings.Contains(out, "5") {
		t.Fatalf("stdout = %s", out)
	}
}

func TestRunAskPrintsMessageOnFailure(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusOK, `{"sql":"","outcome":{"ok":false,"error":"no statement generated"},"message":"Failed to generate SQL query from the given question."}`)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "ask", "school", "anything"}, Options{Stdout: &stdout, Stderr: &stderr})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "Failed to generate SQL query") {
		t.Fatalf("stdout = %s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "no statement generated") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunQueryFailedOutcomeExitsNonZero(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"ok":false,"error":"no such table: X"}`)

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "query", "school", "SELECT * FROM X", "--row-limit", "3"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if got.body["row_limit"] != float64(3) {
		t.Fatalf("body = %#v", got.body)
	}
	if !strings.Contains(stderr.String(), "no such table") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunTranslateUsesKind(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"sql":"CREATE TABLE T (A TEXT);","prompt_kind":"schema_admin"}`)

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "translate", "--kind", "schema_admin", "create", "table", "T"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.body["prompt_kind"] != "schema_admin" || got.body["question"] != "create table T" {
		t.Fatalf("body = %#v", got.body)
	}
	if strings.TrimSpace(stdout.String()) != "CREATE TABLE T (A TEXT);" {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunHistoryPassesLimit(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"entries":[{"id":"e1","source":"ask","database":"school","question":"q","sql":"SELECT 1","ok":true,"row_count":1,"created_at":"2026-01-01T00:00:00Z"}],"limit":5}`)

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "history", "--limit", "5"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.path != "/v1/history" || got.query != "limit=5" {
		t.Fatalf("request = %s?%s", got.path, got.query)
	}
	if !strings.Contains(stdout.String(), "SELECT 1") {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunReturnsOneOnHTTPError(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusForbidden, `{"error_code":"FORBIDDEN","message":"missing role","retryable":false}`)

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "mkdir", "x"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "http 403: FORBIDDEN: missing role") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	var stderr bytes.Buffer
	if code := Run(context.Background(), []string{"unknown-cmd"}, Options{Stderr: &stderr}); code != 2 {
		t.Fatalf("unknown command exit code = %d, want 2", code)
	}
	if code := Run(context.Background(), []string{"tables"}, Options{Stderr: &stderr}); code != 2 {
		t.Fatalf("missing args exit code = %d, want 2", code)
	}
}
