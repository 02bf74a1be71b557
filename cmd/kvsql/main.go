// Package main contains the cli implementation of the engine. It uses the
// cobra package for the command tree: an interactive shell, one-shot
// statement execution, and catalog diagnostics.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kvsql/internal/config"
	"kvsql/internal/engine"
	"kvsql/internal/output"
	"kvsql/internal/repl"
)

type rootFlags struct {
	configPath string
	dataDir    string
	inMemory   bool
	format     string
}

func main() {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "kvsql",
		Short:         "SQL engine over an ordered key-value store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Data directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flags.inMemory, "in-memory", false, "Run without persistent storage")
	rootCmd.PersistentFlags().StringVarP(&flags.format, "format", "f", "", "Output format: table, json, or csv")

	rootCmd.AddCommand(replCmd(flags))
	rootCmd.AddCommand(execCmd(flags))
	rootCmd.AddCommand(tablesCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// session loads config, builds the logger, and opens the engine.
func session(flags *rootFlags) (*engine.Engine, config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, cfg, nil, err
	}
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.inMemory {
		cfg.InMemory = true
	}
	if flags.format != "" {
		cfg.Format = flags.format
	}
	logger, err := cfg.BuildLogger()
	if err != nil {
		return nil, cfg, nil, err
	}
	eng, err := engine.Open(engine.Options{
		DataDir:  cfg.DataDir,
		InMemory: cfg.InMemory,
		Logger:   logger,
	})
	if err != nil {
		return nil, cfg, nil, err
	}
	return eng, cfg, logger, nil
}

func replCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, cfg, logger, err := session(flags)
			if err != nil {
				return err
			}
			defer eng.Close()
			defer logger.Sync()
			formatter, err := output.NewFormatter(cfg.Format)
			if err != nil {
				return err
			}
			return repl.New(eng, formatter, cmd.OutOrStdout()).Run(cmd.Context())
		},
	}
}

func execCmd(flags *rootFlags) *cobra.Command {
	var statement string
	cmd := &cobra.Command{
		Use:   "exec [script.sql]",
		Short: "Execute statements from a file or -e and print the results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql := statement
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read script: %w", err)
				}
				sql = string(data)
			}
			if strings.TrimSpace(sql) == "" {
				return fmt.Errorf("nothing to execute: pass a script file or -e")
			}
			eng, cfg, logger, err := session(flags)
			if err != nil {
				return err
			}
			defer eng.Close()
			defer logger.Sync()
			formatter, err := output.NewFormatter(cfg.Format)
			if err != nil {
				return err
			}
			return runScript(cmd.Context(), cmd, eng, formatter, sql)
		},
	}
	cmd.Flags().StringVarP(&statement, "execute", "e", "", "Statements to execute")
	return cmd
}

func runScript(ctx context.Context, cmd *cobra.Command, eng *engine.Engine, formatter output.Formatter, sql string) error {
	results, err := eng.ExecAll(ctx, sql)
	if err != nil {
		return err
	}
	for _, result := range results {
		rendered, err := formatter.FormatResult(result)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), rendered)
	}
	return nil
}

func tablesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables and their columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, _, logger, err := session(flags)
			if err != nil {
				return err
			}
			defer eng.Close()
			defer logger.Sync()
			for _, table := range eng.Tables() {
				cols := make([]string, 0, len(table.Columns))
				for _, col := range table.Columns {
					c := fmt.Sprintf("%s %s", col.Name, col.Type)
					if col.PrimaryKey {
						c += " PRIMARY KEY"
					}
					cols = append(cols, c)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (id=%d): %s\n", table.Name, table.ID, strings.Join(cols, ", "))
			}
			return nil
		},
	}
}
