package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// PrintJSON writes v as two-space indented JSON followed by a newline.
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// PrintTable renders rows in aligned columns with uppercase headers and
// two-space gutters. No columns means no output at all; no rows prints just
// the header line.
func PrintTable(w io.Writer, columns []string, rows [][]string) {
	if len(columns) == 0 {
		return
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, col := range columns {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(padRight(strings.ToUpper(col), widths[i]))
	}
	fmt.Fprintln(w, strings.TrimRight(b.String(), " "))

	for _, row := range rows {
		b.Reset()
		for i := range columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(padRight(cell, widths[i]))
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}

// PrintDetail renders a key/value listing with keys sorted and the values
// aligned in one column.
func PrintDetail(w io.Writer, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	maxKey := 0
	for k := range fields {
		keys = append(keys, k)
		if len(k) > maxKey {
			maxKey = len(k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(w, "%s  %s\n", padRight(k+":", maxKey+1), fields[k])
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// FormatValue renders one decoded JSON value as a table cell. Nested objects
// and arrays come out as compact JSON rather than Go syntax, and nil renders
// empty so optional fields leave blank cells.
func FormatValue(v interface{}) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

// ExtractField renders one field of a decoded JSON object, empty when the
// key is absent.
func ExtractField(item map[string]interface{}, key string) string {
	v, ok := item[key]
	if !ok {
		return ""
	}
	return FormatValue(v)
}

// ExtractRows pulls the named list out of a decoded response body and
// renders the requested columns. List items that are not objects are
// skipped; missing columns leave empty cells.
func ExtractRows(payload map[string]interface{}, listKey string, columns []string) [][]string {
	items, ok := payload[listKey].([]interface{})
	if !ok {
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = ExtractField(obj, col)
		}
		rows = append(rows, row)
	}
	return rows
}
