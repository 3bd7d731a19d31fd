package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"checkweigher/internal/simrun"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List configured package profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			names := cfg.ProfileNames()
			if jsonOut {
				type profileView struct {
					Name                string  `json:"name"`
					Shape               string  `json:"shape"`
					FinalNominal        float64 `json:"final_nominal"`
					RangeMin            float64 `json:"range_min"`
					RangeMax            float64 `json:"range_max"`
					GateTolerance       float64 `json:"gate_tolerance"`
					SensorAccuracy      float64 `json:"sensor_accuracy"`
					SpawnIntervalTicks  int     `json:"spawn_interval_ticks"`
					ThroughputKgPerHour float64 `json:"throughput_kg_per_hour"`
				}
				views := make([]profileView, 0, len(names))
				for _, name := range names {
					p, err := simrun.Profile(cfg, name)
					if err != nil {
						return err
					}
					views = append(views, profileView{
						Name:                p.Name,
						Shape:               string(p.Shape),
						FinalNominal:        p.FinalNominal(),
						RangeMin:            p.RangeMin,
						RangeMax:            p.RangeMax,
						GateTolerance:       p.GateTolerance(),
						SensorAccuracy:      p.SensorAccuracy,
						SpawnIntervalTicks:  p.SpawnIntervalTicks(),
						ThroughputKgPerHour: p.ThroughputKgPerHour * p.ThroughputMultiplier,
					})
				}
				return writeJSON(cmd, views)
			}

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				p, err := simrun.Profile(cfg, name)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					p.Name,
					displayLabel(string(p.Shape)),
					fmt.Sprintf("%.3f", p.FinalNominal()),
					fmt.Sprintf("%.3f – %.3f", p.RangeMin, p.RangeMax),
					fmt.Sprintf("± %.3f", p.GateTolerance()),
					fmt.Sprintf("± %.3f", p.SensorAccuracy),
					fmt.Sprintf("%d", p.SpawnIntervalTicks()),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable("",
				[]string{"Profile", "Shape", "Nominal (kg)", "Range (kg)", "Tolerance", "Sensor", "Interval (ticks)"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print profiles as JSON")
	return cmd
}
