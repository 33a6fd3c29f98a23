package querybridgectl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeRaw(w io.Writer, raw []byte) {
	if pretty, ok := prettyJSON(raw); ok {
		_, _ = fmt.Fprintln(w, pretty)
		return
	}
	if len(raw) > 0 {
		_, _ = fmt.Fprintln(w, string(raw))
	}
}

// writeTable renders header plus rows. NULL cells print as NULL.
func writeTable(w io.Writer, header []string, rows [][]any) error {
	if len(header) == 0 {
		return nil
	}
	data := make([][]string, 0, len(rows)+1)
	data = append(data, header)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, value := range row {
			if value == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(value)
		}
		data = append(data, cells)
	}
	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, _ = fmt.Fprintln(w, rendered)
	return nil
}

func writeList(w io.Writer, header string, values []string) error {
	rows := make([][]any, 0, len(values))
	for _, value := range values {
		rows = append(rows, []any{value})
	}
	return writeTable(w, []string{header}, rows)
}
