package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrStatementNotAllowed = errors.New("only read-only SELECT/WITH statements are allowed")
	ErrMultipleStatements  = errors.New("only one statement may be executed per request")
)

// Request describes one statement run. ReadOnly asks the engine to open the
// database with writes disabled at the connection level.
type Request struct {
	SQL          string
	DatabasePath string
	RowLimit     int
	ReadOnly     bool
}

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

// Outcome is the tagged result shown to callers. Exactly one of Rows or Error
// is meaningful, selected by OK.
type Outcome struct {
	OK         bool     `json:"ok"`
	Columns    []string `json:"columns,omitempty"`
	Rows       [][]any  `json:"rows,omitempty"`
	RowCount   int      `json:"row_count"`
	Truncated  bool     `json:"truncated,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

func NewOutcome(result Result, err error) Outcome {
	if err != nil {
		return Outcome{OK: false, Error: err.Error()}
	}
	rows := result.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return Outcome{
		OK:         true,
		Columns:    result.Columns,
		Rows:       rows,
		RowCount:   len(rows),
		Truncated:  result.Truncated,
		DurationMS: result.Duration.Milliseconds(),
	}
}

// Empty reports a successful run that produced no rows.
func (o Outcome) Empty() bool {
	return o.OK && o.RowCount == 0
}

// Guard rejects batches of more than one statement, and anything but
// SELECT/WITH when readOnly is set. The keyword check does not catch writes
// nested in a WITH clause; the engine's read-only connection does.
func Guard(sqlText string, readOnly bool) error {
	statement, err := SingleStatement(sqlText)
	if err != nil {
		return err
	}
	normalized := strings.ToLower(statement)
	if normalized == "" {
		return fmt.Errorf("sql is required")
	}
	if !readOnly {
		return nil
	}
	if strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with") {
		return nil
	}
	return ErrStatementNotAllowed
}

// SingleStatement returns the first statement of sqlText without its
// terminator. Semicolons inside quoted strings, quoted identifiers and
// comments do not count. Anything but whitespace, comments and further
// semicolons after the first terminator fails with ErrMultipleStatements.
func SingleStatement(sqlText string) (string, error) {
	text := strings.TrimSpace(sqlText)
	end := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			if end >= 0 {
				return "", ErrMultipleStatements
			}
			closing := strings.IndexByte(text[i+1:], c)
			if closing < 0 {
				i = len(text)
				break
			}
			i += closing + 1
		case c == '[' && end < 0:
			closing := strings.IndexByte(text[i+1:], ']')
			if closing < 0 {
				i = len(text)
				break
			}
			i += closing + 1
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			newline := strings.IndexByte(text[i:], '\n')
			if newline < 0 {
				i = len(text)
				break
			}
			i += newline
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			closing := strings.Index(text[i+2:], "*/")
			if closing < 0 {
				i = len(text)
				break
			}
			i += closing + 3
		case c == ';':
			if end < 0 {
				end = i
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		default:
			if end >= 0 {
				return "", ErrMultipleStatements
			}
		}
	}
	if end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text), nil
}
