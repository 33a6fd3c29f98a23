//go:build !cgo_sqlite

package dbfile

import (
	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName = "sqlite"
	sqliteDriverType = "purego"
)

// sqliteReadOnlyDSN opens uri read-only and sets query_only on the
// connection.
func sqliteReadOnlyDSN(uri string) string {
	return uri + "?mode=ro&_pragma=query_only(1)"
}
