//go:build cgo_sqlite

// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package dbfile

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteDriverName = "sqlite3"
	sqliteDriverType = "cgo"
)

func sqliteReadOnlyDSN(uri string) string {
	return uri + "?mode=ro&_query_only=1"
}
