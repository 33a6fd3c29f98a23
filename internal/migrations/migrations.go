// Package migrations owns the schema of the query history store: the
// query_history and result_export tables read and written by
// history/postgres. Scripts are embedded in the binary and every applied
// version is tracked together with its name in querybridge_schema_migrations.
package migrations

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var historyScripts embed.FS

const versionTable = "querybridge_schema_migrations"

var (
	scriptNamePattern = regexp.MustCompile(`^([0-9]+)_([a-z0-9_]+)\.(up|down)\.sql$`)

	// ErrUnknownVersion means the history database carries a version this
	// binary has no script for, typically after running a newer release.
	ErrUnknownVersion = errors.New("history schema version unknown to this build")
)

// Migration is one versioned change to the history schema.
type Migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

// Report splits the known migrations by state, both in ascending order.
type Report struct {
	Applied []Migration
	Pending []Migration
}

// Current is the highest applied version, or 0 on an empty database.
func (r Report) Current() int64 {
	if len(r.Applied) == 0 {
		return 0
	}
	return r.Applied[len(r.Applied)-1].Version
}

func (r Report) UpToDate() bool {
	return len(r.Pending) == 0
}

type Runner struct {
	scripts fs.FS
}

// NewRunner returns a runner over the history scripts built into the binary.
func NewRunner() *Runner {
	return &Runner{scripts: historyScripts}
}

func newRunnerWithFS(scripts fs.FS) *Runner {
	return &Runner{scripts: scripts}
}

func (r *Runner) Status(ctx context.Context, db *sql.DB) (Report, error) {
	return r.plan(ctx, db)
}

// Up applies pending migrations oldest first. steps <= 0 applies all of them.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	report, err := r.plan(ctx, db)
	if err != nil {
		return 0, err
	}
	pending := report.Pending
	if steps > 0 && steps < len(pending) {
		pending = pending[:steps]
	}
	for i, m := range pending {
		err := runInTx(ctx, db, m.Up,
			`INSERT INTO `+versionTable+` (version, name) VALUES ($1, $2)`, m.Version, m.Name)
		if err != nil {
			return i, fmt.Errorf("apply migration %s: %w", m, err)
		}
	}
	return len(pending), nil
}

// Down rolls back applied migrations newest first. steps <= 0 rolls back one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	report, err := r.plan(ctx, db)
	if err != nil {
		return 0, err
	}
	applied := slices.Clone(report.Applied)
	slices.Reverse(applied)
	if steps < len(applied) {
		applied = applied[:steps]
	}
	for i, m := range applied {
		err := runInTx(ctx, db, m.Down,
			`DELETE FROM `+versionTable+` WHERE version = $1`, m.Version)
		if err != nil {
			return i, fmt.Errorf("roll back migration %s: %w", m, err)
		}
	}
	return len(applied), nil
}

// plan loads the scripts, makes sure the version table exists and matches the
// applied versions against the scripts.
func (r *Runner) plan(ctx context.Context, db *sql.DB) (Report, error) {
	known, err := loadMigrations(r.scripts)
	if err != nil {
		return Report{}, err
	}
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+versionTable+` (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return Report{}, fmt.Errorf("ensure %s: %w", versionTable, err)
	}
	versions, err := appliedVersions(ctx, db)
	if err != nil {
		return Report{}, err
	}

	byVersion := make(map[int64]Migration, len(known))
	for _, m := range known {
		byVersion[m.Version] = m
	}
	report := Report{Applied: make([]Migration, 0, len(versions)), Pending: make([]Migration, 0)}
	done := make(map[int64]bool, len(versions))
	for _, version := range versions {
		m, ok := byVersion[version]
		if !ok {
			return Report{}, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
		}
		report.Applied = append(report.Applied, m)
		done[version] = true
	}
	for _, m := range known {
		if !done[m.Version] {
			report.Pending = append(report.Pending, m)
		}
	}
	return report, nil
}

func runInTx(ctx context.Context, db *sql.DB, script, bookkeeping string, args ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return fmt.Errorf("update %s: %w", versionTable, err)
	}
	return tx.Commit()
}

func appliedVersions(ctx context.Context, db *sql.DB) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM `+versionTable+` ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	versions := make([]int64, 0)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied versions: %w", err)
	}
	return versions, nil
}

// loadMigrations pairs <version>_<name>.up.sql with its .down.sql. Files not
// following that pattern are ignored; a half pair or a name mismatch between
// the two halves is an error.
func loadMigrations(scripts fs.FS) ([]Migration, error) {
	files, err := fs.Glob(scripts, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migration scripts: %w", err)
	}

	pairs := map[int64]*Migration{}
	for _, file := range files {
		parts := scriptNamePattern.FindStringSubmatch(path.Base(file))
		if parts == nil {
			continue
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version of %q: %w", file, err)
		}
		body, err := fs.ReadFile(scripts, file)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", file, err)
		}

		m, ok := pairs[version]
		if !ok {
			m = &Migration{Version: version, Name: parts[2]}
			pairs[version] = m
		}
		if m.Name != parts[2] {
			return nil, fmt.Errorf("migration %d has mismatched names %q and %q", version, m.Name, parts[2])
		}
		if parts[3] == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	migrations := make([]Migration, 0, len(pairs))
	for _, m := range pairs {
		if strings.TrimSpace(m.Up) == "" {
			return nil, fmt.Errorf("migration %s missing up SQL", m)
		}
		if strings.TrimSpace(m.Down) == "" {
			return nil, fmt.Errorf("migration %s missing down SQL", m)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}
