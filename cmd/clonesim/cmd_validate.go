package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexsteininfo/clonesim/internal/engine"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a parameter file without running a simulation",
		Long: `Check a parameter file without running a simulation.

Beyond field-level validation this constructs the configured engine, so
cross-field problems (a time-dependent mutation model on the flat
backend, a split larger than the module capacity) are reported too.

Examples:
  clonesim validate --config params.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// Dry construction catches what per-field checks cannot.
			switch cfg.Process() {
			case engine.ProcessMultilevel:
				_, err = engine.New(cfg.Options(), rng.New(1), nil, nil)
			default:
				_, err = engine.NewSingleLevel(cfg.Options(), rng.New(1), nil, nil)
			}
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"valid":   true,
					"process": cfg.Simulation.Process,
					"backend": cfg.Simulation.Backend,
				})
			}
			fmt.Printf("Configuration valid: %s process on the %s backend, capacity %d, horizon %g\n",
				cfg.Simulation.Process, cfg.Simulation.Backend, cfg.Simulation.Capacity, cfg.Simulation.Horizon)
			return nil
		},
	}
}
