package querybridgectl

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type outcome struct {
	OK        bool     `json:"ok"`
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
	Error     string   `json:"error"`
}

func (a *app) directoryQuery() url.Values {
	query := url.Values{}
	if dir := strings.TrimSpace(a.flags.directory); dir != "" {
		query.Set("directory", dir)
	}
	return query
}

func (a *app) healthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "GET /v1/health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := a.client().do(cmd.Context(), http.MethodGet, "/v1/health", nil, nil)
			if err != nil {
				return failed(err)
			}
			writeRaw(cmd.OutOrStdout(), raw)
			return nil
		},
	}
}

func (a *app) readyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "GET /v1/ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := a.client().do(cmd.Context(), http.MethodGet, "/v1/ready", nil, nil)
			if err != nil {
				return failed(err)
			}
			writeRaw(cmd.OutOrStdout(), raw)
			return nil
		},
	}
}

func (a *app) mkdirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory for database files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Directory string `json:"directory"`
			}
			raw, err := a.client().decode(cmd.Context(), http.MethodPost, "/v1/directories", nil, map[string]any{"path": args[0]}, &resp)
			if err != nil {
				return failed(err)
			}
			if a.flags.jsonOut {
				writeRaw(cmd.OutOrStdout(), raw)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "directory ready: %s\n", resp.Directory)
			return nil
		},
	}
}

func (a *app) databasesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List database files in the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Directory string   `json:"directory"`
				Databases []string `json:"databases"`
			}
			raw, err := a.client().decode(cmd.Context(), http.MethodGet, "/v1/databases", a.directoryQuery(), nil, &resp)
			if err != nil {
				return failed(err)
			}
			if a.flags.jsonOut {
				writeRaw(cmd.OutOrStdout(), raw)
				return nil
			}
			return failed(writeList(cmd.OutOrStdout(), "DATABASE", resp.Databases))
		},
	}
}

func (a *app) tablesCommand() *cobra.Command {
	var withColumns bool
	cmd := &cobra.Command{
		Use:   "tables <database>",
		Short: "List tables of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := a.directoryQuery()
			if withColumns {
				query.Set("columns", "true")
			}
			path := "/v1/databases/" + url.PathEscape(args[0]) + "/tables"
			raw, err := a.client().do(cmd.Context(), http.MethodGet, path, query, nil)
			if err != nil {
				return failed(err)
			}
			if a.flags.jsonOut {
				writeRaw(cmd.OutOrStdout(), raw)
				return nil
			}
			if !withColumns {
				var resp struct {
					Tables []string `json:"tables"`
				}
				if err := unmarshal(raw, &resp); err != nil {
					return failed(err)
				}
				return failed(writeList(cmd.OutOrStdout(), "TABLE", resp.Tables))
			}
			var resp struct {
				Tables []struct {
					Name    string   `json:"name"`
					Columns []string `json:"columns"`
				} `json:"tables"`
			}
			if err := unmarshal(raw, &resp); err != nil {
				return failed(err)
			}
			rows := make([][]any, 0, len(resp.Tables))
			for _, table := range resp.Tables {
				rows = append(rows, []any{table.Name, strings.Join(table.Columns, ", ")})
			}
			return failed(writeTable(cmd.OutOrStdout(), []string{"TABLE", "COLUMNS"}, rows))
		},
	}
	cmd.Flags().BoolVar(&withColumns, "columns", false, "include column names")
	return cmd
}

func (a *app) createTableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create-table <database> <table> <columns>",
		Short: "Create a table with comma-separated TEXT columns",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"directory":  a.flags.directory,
				"table_name": args[1],
				"columns":    args[2],
			}
			path := "/v1/databases/" + url.PathEscape(args[0]) + "/tables"
			var resp struct {
				Message string `json:"message"`
			}
			raw, err := a.client().decode(cmd.Context(), http.MethodPost, path, nil, payload, &resp)
			if err != nil {
				return failed(err)
			}
			if a.flags.jsonOut {
				writeRaw(cmd.OutOrStdout(), raw)
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func (a *app) insertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <database> <table> <rows-file|->",
		Short: "Insert comma-separated rows, one per line, from a file or stdin",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := a.readValues(args[2])
			if err != nil {
				return failed(err)
			}
			payload := map[string]any{
				"directory": a.flags.directory,
				"values":    values,
			}
			path := "/v1/databases/" + url.PathEscape(args[0]) + "/tables/" + url.PathEscape(args[1]) + "/rows"
			var resp struct {
				Inserted int    `json:"inserted"`
				Message  string `json:"message"`
			}
			raw, err := a.client().decode(cmd.Context(), http.MethodPost, path, nil, payload, &resp)
			if err != nil {
				return failed(err)
			}
			if a.flags.jsonOut {
				writeRaw(cmd.OutOrStdout(), raw)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%d rows)\n", resp.Message, resp.Inserted)
			return nil
		},
	}
}

func (a *app) readValues(source string) (string, error) {
	if source == "-" {
		if a.opts.Stdin == nil {
			return "", fmt.Errorf("stdin is not available")
		}
		raw, err := io.ReadAll(a.opts.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("read rows file: %w", err)
	}
	return string(raw), nil
}

func (a *app) askCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <database> <question...>",
		Short: "Translate a question into SQL and run it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"directory": a.flags.directory,
				"database":  args[0],
				"question":  strings.Join(args[1:], " "),
			}
			var resp struct {
				SQL     string  `json:"sql"`
				Outcome outcome `json:"outcome"`
				Message string  `json:"message"`
			}
			raw, err := a.client().decode(cmd.Context(), http.MethodPost, "/v1/ask", nil, payload, &resp)
			if err != nil {
				return failed(err)
			}
			if a.flags.jsonOut {
				writeRaw(cmd.OutOrStdout(), raw)
				return nil
			}
			out := cmd.OutOrStdout()
			if resp.SQL != "" {
				_, _ = fmt.Fprintf(out, "sql: %s\n", resp.SQL)
			}
			if resp.Message != "" {
				_, _ = fmt.Fprintln(out, resp.Message)
				if resp.Outcome.Error != "" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "cause: %s\n", resp.Outcome.Error)
				}
				return nil
			}
			return failed(writeOutcome(out, resp.Outcome))
		},
	}
}

func (a *app) queryCommand() *cobra.Command {
	var rowLimit int
	cmd := &cobra.Command{
		Use:   "query <database> <sql>",
		Short: "Run a statement",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"directory": a.flags.directory,
				"database":  args[0],
				"sql":       args[1],
				"row_limit": rowLimit,
			}
			var resp outcome
			raw, err := a.client().decode(cmd.Context(), http.MethodPost, "/v1/query", nil, payload, &resp)
			if err != nil {
				return failed(err)
			}
			if a.flags.jsonOut {
				writeRaw(cmd.OutOrStdout(), raw)
				return nil
			}
			if !resp.OK {
				return failed(fmt.Errorf("query failed: %s", resp.Error))
			}
			return failed(writeOutcome(cmd.OutOrStdout(), resp))
		},
	}
	cmd.Flags().IntVar(&rowLimit, "row-limit", 0, "maximum rows to fetch (0 uses the server limit)")
	return cmd
}

func (a *app) translateCommand() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "translate <question...>",
		Short: "Show the SQL generated for a question without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"question":    strings.Join(args, " "),
				"prompt_kind": kind,
			}
			var resp struct {
				SQL string `json:"sql"`
			}
			raw, err := a.client().decode(cmd.Context(), http.MethodPost, "/v1/query/translate", nil, payload, &resp)
			if err != nil {
				return failed(err)
			}
			if a.flags.jsonOut {
				writeRaw(cmd.OutOrStdout(), raw)
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), resp.SQL)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "query", "prompt kind: query or schema_admin")
	return cmd
}

func (a *app) exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <database> <sql>",
		Short: "Export a query result to object storage as Parquet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"directory": a.flags.directory,
				"sql":       args[1],
			}
			var resp struct {
				ObjectKey string `json:"object_key"`
				RowCount  int    `json:"row_count"`
			}
			path := "/v1/databases/" + url.PathEscape(args[0]) + "/export"
			raw, err := a.client().decode(cmd.Context(), http.MethodPost, path, nil, payload, &resp)
			if err != nil {
				return failed(err)
			}
			if a.flags.jsonOut {
				writeRaw(cmd.OutOrStdout(), raw)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", resp.RowCount, resp.ObjectKey)
			return nil
		},
	}
}

func (a *app) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent questions and statements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			var resp struct {
				Entries []struct {
					ID        string `json:"id"`
					Source    string `json:"source"`
					Database  string `json:"database"`
					Question  string `json:"question"`
					SQL       string `json:"sql"`
					OK        bool   `json:"ok"`
					RowCount  int    `json:"row_count"`
					CreatedAt string `json:"created_at"`
				} `json:"entries"`
			}
			raw, err := a.client().decode(cmd.Context(), http.MethodGet, "/v1/history", query, nil, &resp)
			if err != nil {
				return failed(err)
			}
			if a.flags.jsonOut {
				writeRaw(cmd.OutOrStdout(), raw)
				return nil
			}
			rows := make([][]any, 0, len(resp.Entries))
			for _, entry := range resp.Entries {
				rows = append(rows, []any{entry.CreatedAt, entry.Source, entry.Database, entry.Question, entry.SQL, entry.OK, entry.RowCount})
			}
			return failed(writeTable(cmd.OutOrStdout(), []string{"CREATED", "SOURCE", "DATABASE", "QUESTION", "SQL", "OK", "ROWS"}, rows))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of entries (server default when 0)")
	return cmd
}

func writeOutcome(w io.Writer, o outcome) error {
	if err := writeTable(w, o.Columns, o.Rows); err != nil {
		return err
	}
	if o.Truncated {
		_, _ = fmt.Fprintf(w, "(%d rows, truncated)\n", o.RowCount)
	}
	return nil
}
