package output

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"kvsql/internal/engine"
)

// tableFormatter renders results as an aligned text table, or an
// "OK, N rows affected" line for statements without output columns.
type tableFormatter struct{}

func (tableFormatter) FormatResult(result *engine.Result) (string, error) {
	if result.Columns == nil {
		return fmt.Sprintf("OK, %d rows affected\n", result.Affected), nil
	}
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "(%d rows)\n", len(result.Rows))
	return sb.String(), nil
}
