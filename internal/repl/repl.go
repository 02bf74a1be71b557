// Package repl is the interactive shell: multi-line input terminated by a
// trailing semicolon, SQL keyword completion, and per-statement error
// recovery. Errors print and the loop keeps accepting input.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/petermattis/prompt"

	"kvsql/internal/engine"
	"kvsql/internal/output"
)

func init() {
	sort.Strings(sqlKeywords)
}

// REPL reads statements and executes them against one engine.
type REPL struct {
	engine    *engine.Engine
	formatter output.Formatter
	out       io.Writer
}

func New(eng *engine.Engine, formatter output.Formatter, out io.Writer) *REPL {
	return &REPL{engine: eng, formatter: formatter, out: out}
}

// Run loops until end of input. Statement errors are printed and the
// session continues; only read errors end the loop.
func (r *REPL) Run(ctx context.Context) error {
	p := prompt.New(
		prompt.WithCompleter(completeKeyword),
		prompt.WithInputFinished(inputFinished),
	)
	for {
		line, err := p.ReadLine("kvsql> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ";")) == "" {
			continue
		}
		results, err := r.engine.ExecAll(ctx, line)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			continue
		}
		for _, result := range results {
			rendered, err := r.formatter.FormatResult(result)
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
				continue
			}
			fmt.Fprint(r.out, rendered)
		}
	}
}

func inputFinished(text string) bool {
	return strings.HasSuffix(strings.TrimSpace(text), ";")
}

// completeKeyword offers SQL keywords for the word under the cursor.
func completeKeyword(text []rune, wordStart, wordEnd int) []string {
	word := strings.ToUpper(string(text[wordStart:wordEnd]))
	if word == "" {
		return nil
	}
	i := sort.Search(len(sqlKeywords), func(i int) bool {
		return sqlKeywords[i] >= word
	})
	var matches []string
	for ; i < len(sqlKeywords); i++ {
		if !strings.HasPrefix(sqlKeywords[i], word) {
			break
		}
		matches = append(matches, sqlKeywords[i])
	}
	return matches
}

// sqlKeywords is the completion vocabulary: the statement surface plus
// the type names.
var sqlKeywords = []string{
	"ABS",
	"AND",
	"AS",
	"ASC",
	"BOOLEAN",
	"BY",
	"CASE",
	"CREATE",
	"DESC",
	"DROP",
	"ELSE",
	"END",
	"FALSE",
	"FROM",
	"INSERT",
	"INT",
	"INTO",
	"IS",
	"KEY",
	"NOT",
	"NULL",
	"OR",
	"ORDER",
	"PRIMARY",
	"SELECT",
	"TABLE",
	"TEXT",
	"THEN",
	"TRUE",
	"VALUES",
	"WHEN",
	"WHERE",
}
