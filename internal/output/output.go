// Package output renders result rows to CSV files, JSON lines, and terminal
// tables. Column order is the query's select order on every path.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/lakeview-lab/eventlake/internal/exec"
)

// WriteCSV writes rows with a header in the given column order.
func WriteCSV(w io.Writer, columns []string, rows []exec.Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = formatValue(row[col])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV writer: %w", err)
	}
	return nil
}

// WriteJSONLines writes one JSON object per row, keys restricted to columns.
func WriteJSONLines(w io.Writer, columns []string, rows []exec.Row) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		obj := make(map[string]any, len(columns))
		for _, col := range columns {
			obj[col] = row[col]
		}
		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("encoding JSON row: %w", err)
		}
	}
	return nil
}

// RenderTable renders rows as an aligned terminal table.
func RenderTable(w io.Writer, columns []string, rows []exec.Row) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = formatValue(row[col])
		}
		table.Append(record)
	}
	table.Render()
}

// formatValue renders a cell. NULL is empty; floats keep their shortest
// round-trip form so summary-path and full-scan outputs compare byte-equal.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	}
	return fmt.Sprintf("%v", v)
}
