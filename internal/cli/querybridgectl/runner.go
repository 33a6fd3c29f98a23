// Package querybridgectl is the command line client for the querybridge API.
package querybridgectl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Directory  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// runtimeError marks failures that happen after argument parsing, so Run can
// tell them apart from usage errors.
type runtimeError struct {
	err error
}

func (e runtimeError) Error() string { return e.err.Error() }

func (e runtimeError) Unwrap() error { return e.err }

func failed(err error) error {
	if err == nil {
		return nil
	}
	return runtimeError{err: err}
}

// Run executes one command and returns the process exit code: 0 on success,
// 1 when the request fails and 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	defaults.Stdout = stdout
	defaults.Stderr = stderr

	root := newRootCommand(&defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	_, _ = fmt.Fprintln(stderr, "error:", err)
	var rtErr runtimeError
	if errors.As(err, &rtErr) {
		return 1
	}
	return 2
}

type globalFlags struct {
	baseURL   string
	apiKey    string
	directory string
	timeout   time.Duration
	jsonOut   bool
}

type app struct {
	opts  *Options
	flags globalFlags
}

func (a *app) client() *client {
	httpClient := a.opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: a.flags.timeout}
	}
	return &client{baseURL: a.flags.baseURL, apiKey: a.flags.apiKey, http: httpClient}
}

func newRootCommand(opts *Options) *cobra.Command {
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:           "querybridgectl",
		Short:         "Command line client for the querybridge API",
		Long:          `querybridgectl manages database files and tables and asks natural-language questions through a running querybridge API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.flags.baseURL, "base-url", firstNonEmpty(opts.BaseURL, "http://localhost:8080"), "querybridge API base URL")
	flags.StringVar(&a.flags.apiKey, "api-key", opts.APIKey, "API key for authenticated requests")
	flags.StringVar(&a.flags.directory, "directory", opts.Directory, "database directory (defaults to the server data directory)")
	flags.DurationVar(&a.flags.timeout, "timeout", durationOr(opts.Timeout, 30*time.Second), "HTTP timeout (e.g. 10s)")
	flags.BoolVar(&a.flags.jsonOut, "json", false, "print raw JSON responses")

	root.AddCommand(
		a.healthCommand(),
		a.readyCommand(),
		a.mkdirCommand(),
		a.databasesCommand(),
		a.tablesCommand(),
		a.createTableCommand(),
		a.insertCommand(),
		a.askCommand(),
		a.queryCommand(),
		a.translateCommand(),
		a.exportCommand(),
		a.historyCommand(),
	)
	return root
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
