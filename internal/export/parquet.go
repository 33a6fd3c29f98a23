package export

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// EncodeResult writes columns and rows as a Parquet file in which every
// column is an optional string. NULL cells stay NULL; everything else is
// rendered with fmt.Sprint. Duplicate or blank column names are made unique.
func EncodeResult(columns []string, rows [][]any) ([]byte, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("at least one column is required")
	}
	names := uniqueColumnNames(columns)

	group := make(parquet.Group, len(names))
	for _, name := range names {
		group[name] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("result", group)

	// Leaf columns are ordered by name; map each result column to its leaf.
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	leafIndex := make(map[string]int, len(sorted))
	for i, name := range sorted {
		leafIndex[name] = i
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewWriter(buf, schema)
	batch := make([]parquet.Row, 0, len(rows))
	for rowIndex, values := range rows {
		if len(values) != len(names) {
			return nil, fmt.Errorf("row %d has %d values, want %d", rowIndex+1, len(values), len(names))
		}
		row := make(parquet.Row, len(names))
		for i, value := range values {
			leaf := leafIndex[names[i]]
			if value == nil {
				row[leaf] = parquet.NullValue().Level(0, 0, leaf)
				continue
			}
			row[leaf] = parquet.ValueOf(fmt.Sprint(value)).Level(0, 1, leaf)
		}
		batch = append(batch, row)
	}
	if len(batch) > 0 {
		if _, err := writer.WriteRows(batch); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func uniqueColumnNames(columns []string) []string {
	seen := make(map[string]int, len(columns))
	names := make([]string, len(columns))
	for i, column := range columns {
		name := strings.TrimSpace(column)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if count := seen[name]; count > 0 {
			candidate := name + "_" + strconv.Itoa(count+1)
			for seen[candidate] > 0 {
				count++
				candidate = name + "_" + strconv.Itoa(count+1)
			}
			seen[name] = count + 1
			name = candidate
		}
		seen[name]++
		names[i] = name
	}
	return names
}
