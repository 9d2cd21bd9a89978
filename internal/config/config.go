// Package config provides unified configuration loading for clonesim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/alexsteininfo/clonesim/internal/engine"
	"github.com/alexsteininfo/clonesim/internal/module"
	"github.com/alexsteininfo/clonesim/internal/mutation"
	"github.com/alexsteininfo/clonesim/internal/rates"
)

// Config contains all clonesim configuration settings.
type Config struct {
	// Simulation is the parameter set of a single replicate.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Batch contains settings for multi-replicate runs.
	Batch BatchConfig `json:"batch" yaml:"batch"`

	// Output contains settings for result export.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig is the parameter set of one stochastic replicate.
type SimulationConfig struct {
	// Process selects the simulation variant: "branching", "moran",
	// "branchingmoran", or "multilevel".
	Process string `json:"process" yaml:"process"`

	// Capacity is the module capacity (multilevel) or the target/fixed
	// population size (single-level).
	Capacity int `json:"capacity" yaml:"capacity"`

	// Horizon is the simulated time bound.
	Horizon float64 `json:"horizon" yaml:"horizon"`

	// Rates are the per-cell base event rates; branch_rate is per module.
	BirthRate      float64 `json:"birth_rate" yaml:"birth_rate"`
	DeathRate      float64 `json:"death_rate" yaml:"death_rate"`
	MoranRate      float64 `json:"moran_rate" yaml:"moran_rate"`
	AsymmetricRate float64 `json:"asymmetric_rate" yaml:"asymmetric_rate"`
	BranchRate     float64 `json:"branch_rate" yaml:"branch_rate"`

	// MutationModel is "fixed", "poisson", "fixedtimedep", or
	// "poissontimedep"; MutationRate is its mean per division (or per
	// unit time for the timedep variants).
	MutationModel string  `json:"mutation_model" yaml:"mutation_model"`
	MutationRate  float64 `json:"mutation_rate" yaml:"mutation_rate"`

	// Backend is the cell representation: "flat", "tree", or "treeprune".
	Backend string `json:"backend" yaml:"backend"`

	// ModuleCap bounds the module count in multilevel runs; 0 = unbounded.
	ModuleCap int `json:"module_cap,omitempty" yaml:"module_cap,omitempty"`

	// ModuleUpdate is "branching" (module count grows) or "moran"
	// (fixed module count).
	ModuleUpdate string `json:"module_update,omitempty" yaml:"module_update,omitempty"`

	// BranchStrategy selects how new modules obtain their founders,
	// with BranchInitSize cells each.
	BranchStrategy string `json:"branch_strategy,omitempty" yaml:"branch_strategy,omitempty"`
	BranchInitSize int    `json:"branch_init_size,omitempty" yaml:"branch_init_size,omitempty"`

	// Structure tags the module layout: "wellmixed" or "linear".
	Structure string `json:"structure,omitempty" yaml:"structure,omitempty"`

	// MoranIncludeSelf lets the Moran death draw land on the divider,
	// redirecting the death to a fresh offspring.
	MoranIncludeSelf bool `json:"moran_include_self" yaml:"moran_include_self"`

	// Sweeps are the scheduled selective sweeps.
	Sweeps []SweepConfig `json:"sweeps,omitempty" yaml:"sweeps,omitempty"`
}

// SweepConfig schedules one selective sweep.
type SweepConfig struct {
	Time           float64 `json:"time" yaml:"time"`
	SelectionCoeff float64 `json:"selection_coeff" yaml:"selection_coeff"`
}

// BatchConfig configures multi-replicate batch runs.
type BatchConfig struct {
	// Replicates is the number of independent runs.
	Replicates int `json:"replicates" yaml:"replicates"`

	// Seed is the base RNG seed; replicate i runs with Seed+i. Zero
	// means derive a seed from the clock.
	Seed uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// Workers bounds the concurrent replicates; 0 = GOMAXPROCS.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// OutputConfig configures result export.
type OutputConfig struct {
	// Dir is the directory run artifacts are written under.
	Dir string `json:"dir" yaml:"dir"`

	// Format selects the table format: "csv" or "arrow".
	Format string `json:"format" yaml:"format"`

	// Catalog is the SQLite file runs are cataloged in; empty disables
	// the catalog.
	Catalog string `json:"catalog,omitempty" yaml:"catalog,omitempty"`
}

// LoggingConfig configures clonesim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to <output dir>/events.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults: a neutral multilevel
// run of modest size.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Process:          string(engine.ProcessMultilevel),
			Capacity:         10,
			Horizon:          50,
			BirthRate:        1,
			DeathRate:        0.1,
			MoranRate:        1,
			AsymmetricRate:   0,
			BranchRate:       0.05,
			MutationModel:    string(mutation.Poisson),
			MutationRate:     1,
			Backend:          string(engine.BackendFlat),
			ModuleCap:        1000,
			ModuleUpdate:     string(engine.UpdateBranching),
			BranchStrategy:   string(engine.StrategySplit),
			BranchInitSize:   1,
			Structure:        string(module.WellMixed),
			MoranIncludeSelf: true,
		},
		Batch: BatchConfig{
			Replicates: 1,
		},
		Output: OutputConfig{
			Dir:    "clonesim-out",
			Format: "csv",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.clonesim/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".clonesim", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	s := c.Simulation
	if !engine.Process(s.Process).Valid() {
		return fmt.Errorf("invalid process: %s (valid: branching, moran, branchingmoran, multilevel)", s.Process)
	}
	if s.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1, got %d", s.Capacity)
	}
	if s.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %g", s.Horizon)
	}
	for name, r := range map[string]float64{
		"birth_rate":      s.BirthRate,
		"death_rate":      s.DeathRate,
		"moran_rate":      s.MoranRate,
		"asymmetric_rate": s.AsymmetricRate,
		"branch_rate":     s.BranchRate,
		"mutation_rate":   s.MutationRate,
	} {
		if r < 0 {
			return fmt.Errorf("%s must be non-negative, got %g", name, r)
		}
	}
	if !mutation.Kind(s.MutationModel).Valid() {
		return fmt.Errorf("invalid mutation model: %s (valid: fixed, poisson, fixedtimedep, poissontimedep)", s.MutationModel)
	}
	if !engine.Backend(s.Backend).Valid() {
		return fmt.Errorf("invalid backend: %s (valid: flat, tree, treeprune)", s.Backend)
	}
	if s.ModuleUpdate != "" && !engine.ModuleUpdate(s.ModuleUpdate).Valid() {
		return fmt.Errorf("invalid module update: %s (valid: branching, moran)", s.ModuleUpdate)
	}
	if s.BranchStrategy != "" && !engine.Strategy(s.BranchStrategy).Valid() {
		return fmt.Errorf("invalid branch strategy: %s", s.BranchStrategy)
	}
	if s.Structure != "" && s.Structure != string(module.WellMixed) && s.Structure != string(module.Linear) {
		return fmt.Errorf("invalid structure: %s (valid: wellmixed, linear)", s.Structure)
	}
	if s.ModuleCap < 0 {
		return fmt.Errorf("module_cap must be non-negative, got %d", s.ModuleCap)
	}
	for i, sw := range s.Sweeps {
		if sw.Time < 0 {
			return fmt.Errorf("sweep %d: time must be non-negative, got %g", i, sw.Time)
		}
	}

	if c.Batch.Replicates < 1 {
		return fmt.Errorf("replicates must be at least 1, got %d", c.Batch.Replicates)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Batch.Workers)
	}

	if c.Output.Format != "csv" && c.Output.Format != "arrow" {
		return fmt.Errorf("invalid output format: %s (valid: csv, arrow)", c.Output.Format)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Process returns the configured simulation variant.
func (c *Config) Process() engine.Process {
	return engine.Process(c.Simulation.Process)
}

// Options converts the simulation parameters to engine options. The
// result is only meaningful after Validate.
func (c *Config) Options() engine.Options {
	s := c.Simulation
	sweeps := make([]engine.Sweep, len(s.Sweeps))
	for i, sw := range s.Sweeps {
		sweeps[i] = engine.Sweep{Time: sw.Time, SelectionCoeff: sw.SelectionCoeff}
	}
	return engine.Options{
		Capacity: s.Capacity,
		Rates: rates.Params{
			Moran:      s.MoranRate,
			Asymmetric: s.AsymmetricRate,
			Birth:      s.BirthRate,
			Death:      s.DeathRate,
			Branch:     s.BranchRate,
		},
		Mutation: mutation.Model{
			Kind: mutation.Kind(s.MutationModel),
			Rate: s.MutationRate,
		},
		Horizon:          s.Horizon,
		ModuleCap:        s.ModuleCap,
		ModuleUpdate:     engine.ModuleUpdate(s.ModuleUpdate),
		MoranIncludeSelf: s.MoranIncludeSelf,
		Strategy:         engine.Strategy(s.BranchStrategy),
		BranchInitSize:   s.BranchInitSize,
		Structure:        module.Structure(s.Structure),
		Backend:          engine.Backend(s.Backend),
		Sweeps:           sweeps,
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("CLONESIM_PROCESS"); v != "" {
		config.Simulation.Process = v
	}
	if v := os.Getenv("CLONESIM_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Capacity = n
		}
	}
	if v := os.Getenv("CLONESIM_HORIZON"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.Horizon = f
		}
	}
	if v := os.Getenv("CLONESIM_BACKEND"); v != "" {
		config.Simulation.Backend = v
	}
	if v := os.Getenv("CLONESIM_REPLICATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Batch.Replicates = n
		}
	}
	if v := os.Getenv("CLONESIM_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Batch.Seed = n
		}
	}
	if v := os.Getenv("CLONESIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Batch.Workers = n
		}
	}
	if v := os.Getenv("CLONESIM_OUTPUT_DIR"); v != "" {
		config.Output.Dir = v
	}
	if v := os.Getenv("CLONESIM_OUTPUT_FORMAT"); v != "" {
		config.Output.Format = v
	}
	if v := os.Getenv("CLONESIM_CATALOG"); v != "" {
		config.Output.Catalog = v
	}
	if v := os.Getenv("CLONESIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
