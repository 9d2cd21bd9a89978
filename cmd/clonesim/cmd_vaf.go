package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/alexsteininfo/clonesim/internal/analysis"
	"github.com/alexsteininfo/clonesim/internal/engine"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

func newVAFCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaf",
		Short: "Simulate one replicate and chart its allele-frequency spectrum",
		Long: `Simulate one replicate and chart its variant-allele-frequency
spectrum as a histogram, optionally fitting the cumulative spectrum
against the neutral 1/f expectation.

Examples:
  clonesim vaf --config params.yaml --png vaf.png
  clonesim vaf --bins 50 --fit-min 0.05 --fit-max 0.25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyOverrides(cmd, cfg)
			log, trace := buildLoggers(cfg)
			defer trace.Close()

			bins, _ := cmd.Flags().GetInt("bins")
			ploidy, _ := cmd.Flags().GetInt("ploidy")
			pngPath, _ := cmd.Flags().GetString("png")
			fitMin, _ := cmd.Flags().GetFloat64("fit-min")
			fitMax, _ := cmd.Flags().GetFloat64("fit-max")

			seed := cfg.Batch.Seed
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			res, err := engine.Run(cmd.Context(), cfg.Process(), cfg.Options(), rng.New(seed), log, trace)
			if err != nil {
				return err
			}

			freqs := analysis.Frequencies(res.Population)
			if len(freqs) == 0 {
				return fmt.Errorf("no mutations in final population (reason: %s)", res.Reason)
			}
			hist, err := analysis.Histogram(freqs, bins, ploidy)
			if err != nil {
				return err
			}

			var fit *analysis.Fit
			if fitMax > fitMin {
				if f, err := analysis.FitOneOverF(freqs, fitMin, fitMax); err == nil {
					fit = &f
				} else {
					log.Warn("1/f fit skipped", "error", err)
				}
			}

			if pngPath != "" {
				if err := renderHistogram(pngPath, hist); err != nil {
					return err
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				out := map[string]any{
					"seed":      seed,
					"mutations": len(freqs),
					"histogram": hist,
				}
				if fit != nil {
					out["fit"] = fit
				}
				if pngPath != "" {
					out["png"] = pngPath
				}
				return json.NewEncoder(os.Stdout).Encode(out)
			}

			fmt.Printf("VAF spectrum: %d mutations across %d cells\n", len(freqs), res.Population.NumCells())
			for _, b := range hist {
				fmt.Printf("  [%.3f, +%.3f)  %d\n", b.Lower, 1/float64(ploidy)/float64(bins), b.Count)
			}
			if fit != nil {
				fmt.Printf("1/f fit over [%g, %g]: mu=%.4g, R²=%.4f (%d points)\n",
					fitMin, fitMax, fit.MuPerDivision, fit.RSquared, fit.Points)
			}
			if pngPath != "" {
				fmt.Printf("wrote %s\n", pngPath)
			}
			return nil
		},
	}

	cmd.Flags().Int("bins", 25, "Number of histogram bins")
	cmd.Flags().Int("ploidy", analysis.DefaultPloidy, "Genome copy number")
	cmd.Flags().String("png", "", "Write the histogram as a PNG chart")
	cmd.Flags().Float64("fit-min", 0, "Lower cell-frequency bound of the 1/f fit")
	cmd.Flags().Float64("fit-max", 0, "Upper cell-frequency bound of the 1/f fit")
	cmd.Flags().Uint64("seed", 0, "RNG seed (0 = derive from clock)")

	return cmd
}

// renderHistogram draws the binned spectrum as a bar chart PNG.
func renderHistogram(path string, hist []analysis.Bin) error {
	bars := make([]chart.Value, len(hist))
	for i, b := range hist {
		bars[i] = chart.Value{
			Value: float64(b.Count),
			Label: fmt.Sprintf("%.2f", b.Lower),
		}
	}
	graph := chart.BarChart{
		Title:    "Variant allele frequency spectrum",
		Height:   512,
		BarWidth: 18,
		Bars:     bars,
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}
