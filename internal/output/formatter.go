// Package output renders statement results for the CLI and REPL. It is
// extendable and provides three formats: an aligned text table, JSON, and
// CSV.
package output

import (
	"fmt"
	"strings"

	"kvsql/internal/engine"
)

// Format is an enum type representing the available output formats.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

// Formatter renders one result.
type Formatter interface {
	FormatResult(*engine.Result) (string, error)
}

// NewFormatter creates a Formatter instance based on the given name.
// If no format is specified, defaults to the text table.
func NewFormatter(name string) (Formatter, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatTable:
		return tableFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	case FormatCSV:
		return csvFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'table', 'json', or 'csv'", name)
	}
}
