package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"focuswatch/internal/benchmark"
	"focuswatch/internal/delta"
	"focuswatch/internal/game"
)

func newBenchmarkCmd(env *cliEnv) *cobra.Command {
	var (
		role    string
		bracket string
		at      float64
		cs      int
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Print the target CS/min for a role and bracket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := env.cfg.Role()
			if role != "" {
				parsed, ok := game.ParseRole(role)
				if !ok {
					return fmt.Errorf("unknown role %q", role)
				}
				r = parsed
			}
			b := env.cfg.Bracket()
			if bracket != "" {
				parsed, ok := game.ParseBracket(bracket)
				if !ok {
					return fmt.Errorf("unknown bracket %q", bracket)
				}
				b = parsed
			}

			client := benchmark.NewClient(env.cfg.Benchmark.URL, env.cfg.Benchmark.APIKey, env.cfg.Poll.HTTPTimeout.Duration)
			svc := benchmark.NewService(client, env.log)
			curve := svc.Curve(cmd.Context(), r, b)

			out := cmd.OutOrStdout()
			target := benchmark.TargetRate(curve, r, b, at)
			fmt.Fprintf(out, "%s / %s at %s: %.2f cs/min\n", r, b, clockTime(at), target)

			if cmd.Flags().Changed("cs") {
				res := delta.ComputeFor(game.NewSnapshot(cs, at), curve, r, b)
				fmt.Fprintf(out, "%d cs is %.2f/min: %s\n", cs, game.CSPerMinute(cs, at), renderBand(res.Band, res.Delta))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role (top, jungle, mid, adc, support)")
	cmd.Flags().StringVar(&bracket, "bracket", "", "skill bracket (iron ... challenger)")
	cmd.Flags().Float64Var(&at, "at", 600, "elapsed game time in seconds")
	cmd.Flags().IntVar(&cs, "cs", 0, "compare a creep score against the target")
	return cmd
}
