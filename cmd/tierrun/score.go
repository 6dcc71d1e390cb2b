package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/ranking"
)

// workoutFlags describes a single workout given on the command line.
type workoutFlags struct {
	distanceKm float64
	duration   time.Duration
	avgHR      int
	maxHR      int
	elevation  float64
	role       string
}

func (w *workoutFlags) register(cmd *cobra.Command, withRole bool) {
	f := cmd.Flags()
	f.Float64Var(&w.distanceKm, "distance", 0, "Distance in km")
	f.DurationVar(&w.duration, "duration", 0, "Moving time, e.g. 45m or 1h02m30s")
	f.IntVar(&w.avgHR, "avg-hr", 0, "Average heart rate")
	f.IntVar(&w.maxHR, "max-hr", 0, "Maximum heart rate")
	f.Float64Var(&w.elevation, "elevation", 0, "Elevation gain in metres")
	if withRole {
		f.StringVar(&w.role, "role", "", "Score as marathoner or sprinter instead of classifying")
	}
	_ = cmd.MarkFlagRequired("distance")
	_ = cmd.MarkFlagRequired("duration")
}

func (w workoutFlags) input() domain.WorkoutInput {
	return domain.WorkoutInput{
		Role:           ranking.Role(w.role),
		DistanceKm:     w.distanceKm,
		DurationSec:    w.duration.Seconds(),
		AvgHeartRate:   w.avgHR,
		MaxHeartRate:   w.maxHR,
		ElevationGainM: w.elevation,
	}
}

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var workout workoutFlags
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the League Points a workout earns",
		Example: `  tierrun score --distance 10 --duration 1h --avg-hr 140
  tierrun score --profile me.yaml --distance 2 --duration 8m --role sprinter`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := opts.loadProfile(cmd)
			if err != nil {
				return err
			}
			in := workout.input()
			role, lp, err := scoreWorkout(in, profile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "role: %s\n", role)
			fmt.Fprintf(out, "pace: %s /km\n", formatPace(ranking.Pace(in.DurationSec, in.DistanceKm)))
			fmt.Fprintf(out, "lp:   %d\n", lp)
			return nil
		},
	}
	workout.register(cmd, true)
	return cmd
}

func newClassifyCmd() *cobra.Command {
	var workout workoutFlags
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show which role a workout counts for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := workout.input()
			if err := ranking.ValidateRun(in.DistanceKm, in.DurationSec); err != nil {
				return err
			}
			pace := ranking.Pace(in.DurationSec, in.DistanceKm)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%.2f km at %s /km)\n", ranking.ClassifyRole(in.DistanceKm, pace), in.DistanceKm, formatPace(pace))
			return nil
		},
	}
	workout.register(cmd, false)
	return cmd
}
