package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/tierrun/internal/ranking"
	"example.com/tierrun/internal/workoutsource/gpx"
)

func newGPXCmd(opts *rootOptions) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "gpx FILE...",
		Short: "Score GPX tracks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := opts.loadProfile(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			total := 0
			for _, path := range args {
				in, err := gpx.ParseFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				in.Role = ranking.Role(role)
				scored, lp, err := scoreWorkout(in, profile)
				if err != nil {
					fmt.Fprintf(out, "%s: skipped: %v\n", path, err)
					continue
				}
				total += lp
				fmt.Fprintf(out, "%s: %s %.2f km in %s at %s /km, %d LP as %s\n",
					path,
					in.StartedAt.Format("2006-01-02 15:04"),
					in.DistanceKm,
					formatDuration(in.DurationSec),
					formatPace(ranking.Pace(in.DurationSec, in.DistanceKm)),
					lp,
					scored,
				)
			}
			if len(args) > 1 {
				fmt.Fprintf(out, "total: %d LP\n", total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "Score as marathoner or sprinter instead of classifying")
	return cmd
}

func formatDuration(seconds float64) string {
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total/60%60, total%60)
}
