package schema

import "strings"

// ParseColumns splits "NAME, CLASS, SECTION" into trimmed column names.
// Empty entries are dropped.
func ParseColumns(text string) []string {
	columns := make([]string, 0)
	for _, part := range strings.Split(text, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			columns = append(columns, trimmed)
		}
	}
	return columns
}

// ParseRows reads one comma-separated tuple per non-blank line.
func ParseRows(text string) [][]string {
	rows := make([][]string, 0)
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, ",")
		row := make([]string, len(parts))
		for i, part := range parts {
			row[i] = strings.TrimSpace(part)
		}
		rows = append(rows, row)
	}
	return rows
}
