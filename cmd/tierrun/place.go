package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/persistence/memory"
)

func newPlaceCmd(opts *rootOptions) *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "place",
		Short: "Place a new runner on both ladders from past workouts",
		Example: `  tierrun place --file history.yaml
  tierrun place --profile me.yaml --file week1.json --file long-run.gpx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := opts.loadProfile(cmd)
			if err != nil {
				return err
			}
			var workouts []domain.WorkoutInput
			for _, path := range files {
				batch, err := loadWorkouts(path)
				if err != nil {
					return err
				}
				workouts = append(workouts, batch...)
			}

			ctx := cmd.Context()
			service := domain.NewService(memory.NewRepository())
			runner, _, err := service.RegisterRunner(ctx, domain.RegisterRunnerInput{Name: "cli", Profile: profile})
			if err != nil {
				return err
			}
			result, err := service.PlaceRunner(ctx, runner.ID, workouts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, placed := range []domain.RolePlacement{result.Marathoner, result.Sprinter} {
				fmt.Fprintf(out, "%-10s %-14s seed %4d LP  %s\n", placed.Role, placed.Placement, placed.Placement.SeedLP(), placed.Analysis)
			}
			fmt.Fprintf(out, "recommended role: %s\n", result.Recommended)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Workout file (yaml, json or gpx); repeatable")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
