package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alexsteininfo/clonesim/internal/config"
	"github.com/alexsteininfo/clonesim/internal/logging"
)

// loadConfig loads the parameter set: the file named by --config when
// given, otherwise defaults plus environment overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildLoggers creates the operational logger and, at debug level and
// above, the JSONL event logger under the output directory.
func buildLoggers(cfg *config.Config) (*slog.Logger, *logging.EventLogger) {
	log := logging.NewLogger(cfg.Logging.Level, os.Stderr)
	var trace *logging.EventLogger
	if cfg.Logging.Level == "debug" || cfg.Logging.Level == "trace" {
		trace = logging.NewEventLogger(cfg.Output.Dir, cfg.Logging.Level)
	}
	return log, trace
}

// applyOverrides copies the command-level overrides into the config.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		cfg.Logging.Level = f.Value.String()
	}
	if f := cmd.Flags().Lookup("seed"); f != nil && f.Changed {
		if n, err := strconv.ParseUint(f.Value.String(), 10, 64); err == nil {
			cfg.Batch.Seed = n
		}
	}
	if f := cmd.Flags().Lookup("replicates"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.Batch.Replicates = n
		}
	}
	if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.Batch.Workers = n
		}
	}
	if f := cmd.Flags().Lookup("out"); f != nil && f.Changed {
		cfg.Output.Dir = f.Value.String()
	}
	if f := cmd.Flags().Lookup("format"); f != nil && f.Changed {
		cfg.Output.Format = f.Value.String()
	}
}
