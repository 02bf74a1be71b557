package output

import (
	"encoding/json"
	"fmt"

	"kvsql/internal/core"
	"kvsql/internal/engine"
)

// jsonFormatter renders results as one JSON document with the column
// list, the rows as arrays of native JSON values, and the affected count.
type jsonFormatter struct{}

type jsonResult struct {
	Columns  []string `json:"columns,omitempty"`
	Rows     [][]any  `json:"rows,omitempty"`
	Affected int64    `json:"rowsAffected"`
}

func (jsonFormatter) FormatResult(result *engine.Result) (string, error) {
	doc := jsonResult{Columns: result.Columns, Affected: result.Affected}
	for _, row := range result.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = jsonValue(v)
		}
		doc.Rows = append(doc.Rows, cells)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data) + "\n", nil
}

func jsonValue(v core.Value) any {
	switch v.Kind() {
	case core.KindNull:
		return nil
	case core.KindInt:
		return v.Int()
	case core.KindBool:
		return v.Bool()
	default:
		return v.Text()
	}
}
