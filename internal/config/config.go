// Package config loads the engine configuration from a TOML file. Every
// field has a default that works with no file present, so the config file
// is optional.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the full engine configuration.
type Config struct {
	// DataDir is where the Badger store lives.
	DataDir string `toml:"data-dir"`
	// InMemory switches to the non-persistent store.
	InMemory bool `toml:"in-memory"`
	// Format is the default result format: table, json, or csv.
	Format string `toml:"format"`
	Log    Log    `toml:"log"`
}

// Log configures logging output.
type Log struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DataDir: "kvsql-data",
		Format:  "table",
		Log:     Log{Level: "warn"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults
// unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// BuildLogger constructs the process logger for the configured level.
func (c Config) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
