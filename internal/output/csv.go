package output

import (
	"encoding/csv"
	"strings"

	"kvsql/internal/engine"
)

// csvFormatter renders query results as CSV with a header row. NULL
// becomes an empty cell.
type csvFormatter struct{}

func (csvFormatter) FormatResult(result *engine.Result) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if result.Columns != nil {
		if err := w.Write(result.Columns); err != nil {
			return "", err
		}
	}
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v.IsNull() {
				continue
			}
			cells[i] = v.String()
		}
		if err := w.Write(cells); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
