package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexsteininfo/clonesim/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List cataloged runs, or show one run's replicates",
		Long: `List cataloged runs, or show one run's replicate summaries.

Examples:
  clonesim runs --catalog runs.db
  clonesim runs 2f1c... --catalog runs.db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			catalogPath, _ := cmd.Flags().GetString("catalog")
			if catalogPath == "" {
				catalogPath = cfg.Output.Catalog
			}
			if catalogPath == "" {
				return fmt.Errorf("no catalog configured; pass --catalog or set output.catalog")
			}

			cat, err := store.Open(catalogPath)
			if err != nil {
				return err
			}
			defer cat.Close()

			jsonOut, _ := cmd.Flags().GetBool("json")

			if len(args) == 1 {
				run, reps, err := cat.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(os.Stdout).Encode(map[string]any{
						"run":        run,
						"replicates": reps,
					})
				}
				fmt.Printf("Run %s  (%s)\n", run.ID, run.CreatedAt.Format(time.RFC3339))
				fmt.Printf("  process %s, backend %s, capacity %d, seed %d\n",
					run.Process, run.Backend, run.Capacity, run.Seed)
				for _, s := range reps {
					fmt.Printf("  rep %3d  seed %-12d %-11s t=%-8.4g modules %-5d cells %-7d subclones %d\n",
						s.Index, s.Seed, s.Reason, s.FinalTime, s.Modules, s.Cells, s.Subclones)
				}
				return nil
			}

			runs, err := cat.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Println("No cataloged runs.")
				return nil
			}
			for _, r := range runs {
				fmt.Printf("%s  %s  %-14s %-9s capacity %-6d replicates %-5d seed %d\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Process, r.Backend,
					r.Capacity, r.Replicates, r.Seed)
			}
			return nil
		},
	}

	cmd.Flags().String("catalog", "", "Path to the run catalog (overrides config)")

	return cmd
}
