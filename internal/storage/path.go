package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExportPath returns exports/<database>/<yyyy-mm-dd>/<id>.parquet with
// the date taken in UTC. A trailing database file extension is dropped.
func BuildExportPath(database string, at time.Time, exportID string) (string, error) {
	database = strings.TrimSuffix(strings.TrimSuffix(database, ".db"), ".duckdb")
	if err := validatePathComponent(database, "database name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(exportID, "export id"); err != nil {
		return "", err
	}
	ts := at.UTC()
	return path.Join(
		"exports",
		database,
		fmt.Sprintf("%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		exportID+".parquet",
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
