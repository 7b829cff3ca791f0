package main

import (
	"fmt"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/region"
	"github.com/spf13/cobra"
)

const defaultRegionTable = "region_factors.json"

func newRegionsCmd(_ *app) *cobra.Command {
	var (
		current   string
		energyKWh float64
		tablePath string
		top       int
	)

	cmd := &cobra.Command{
		Use:   "regions",
		Short: "Rank regions with a cleaner grid than the current one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := region.LoadTable(tablePath)
			if err != nil {
				return withExitCode(exitError, err)
			}

			out := cmd.OutOrStdout()
			alts, err := region.Compare(table, current, energyKWh)
			if err != nil {
				if errors.HasCode(err, errors.ErrLookupFailed) {
					fmt.Fprintf(out, "Current region %s not in table.\n", current)
					return withExitCode(exitError, nil)
				}
				return withExitCode(exitError, err)
			}

			if top >= 0 && len(alts) > top {
				alts = alts[:top]
			}

			fmt.Fprintln(out, "Top greener regions (by gCO2/kWh):")
			for _, alt := range alts {
				fmt.Fprintf(out, "- %s (%s): %.0f gCO2/kWh → ~%.1f%% less CO₂e (≈ %.3f kg saved for %.2f kWh)\n",
					alt.DisplayName, alt.Region, alt.GCO2PerKWh, alt.PctSaved, alt.KgSaved, energyKWh)
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&current, "current", "", "current region id")
	f.Float64Var(&energyKWh, "energy-kwh", 0, "energy of the workload in kWh")
	f.StringVar(&tablePath, "table", defaultRegionTable, "region factor table (JSON or YAML)")
	f.IntVar(&top, "top", 3, "number of regions to list")
	_ = cmd.MarkFlagRequired("current")
	_ = cmd.MarkFlagRequired("energy-kwh")

	return cmd
}
