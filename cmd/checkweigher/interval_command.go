package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"checkweigher/internal/line"
)

func newIntervalCommand() *cobra.Command {
	var weight, rate, multiplier float64

	cmd := &cobra.Command{
		Use:         "interval",
		Short:       "Compute the bagging interval in ticks for a weight and throughput",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if weight <= 0 || rate <= 0 {
				return fmt.Errorf("--weight and --rate must be positive")
			}
			ticks := line.SpawnIntervalTicks(weight, rate, multiplier)
			fmt.Fprintf(cmd.OutOrStdout(), "%d ticks (%.2f s at 60 ticks/s)\n", ticks, float64(ticks)/60)
			return nil
		},
	}
	cmd.Flags().Float64Var(&weight, "weight", 0, "Item weight in kg")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Throughput in kg/h")
	cmd.Flags().Float64Var(&multiplier, "multiplier", 1, "Throughput multiplier")
	return cmd
}
