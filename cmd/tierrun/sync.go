package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/persistence/sqlite"
	"example.com/tierrun/internal/workoutsource/gpx"
)

type syncOptions struct {
	dbPath      string
	dir         string
	runnerID    string
	since       string
	parallelism int
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	so := syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync GPX folders into a local ranking database",
		Long: `Sync reads <dir>/<runner-id>/*.gpx and ingests every track into a local
sqlite database. Runners missing from the database are registered with the
resolved profile. Runners are synced in parallel, each runner's runs in order.`,
		Example: `  tierrun sync --dir ~/tracks --db tierrun.db
  tierrun sync --dir ~/tracks --runner ada --since 2025-11-01T00:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, opts, so)
		},
	}
	f := cmd.Flags()
	f.StringVar(&so.dbPath, "db", "tierrun.db", "sqlite database path")
	f.StringVar(&so.dir, "dir", "", "Root folder holding one sub-folder of GPX files per runner")
	f.StringVar(&so.runnerID, "runner", "", "Only sync this runner")
	f.StringVar(&so.since, "since", "", "Skip tracks started before this RFC3339 time")
	f.IntVar(&so.parallelism, "parallelism", 4, "Runners synced concurrently")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func runSync(cmd *cobra.Command, opts *rootOptions, so syncOptions) error {
	var since time.Time
	if so.since != "" {
		ts, err := time.Parse(time.RFC3339, so.since)
		if err != nil {
			return fmt.Errorf("--since: %w", err)
		}
		since = ts
	}

	runnerIDs := []string{so.runnerID}
	if so.runnerID == "" {
		entries, err := os.ReadDir(so.dir)
		if err != nil {
			return err
		}
		runnerIDs = runnerIDs[:0]
		for _, entry := range entries {
			if entry.IsDir() {
				runnerIDs = append(runnerIDs, entry.Name())
			}
		}
		slices.Sort(runnerIDs)
	}

	ctx := cmd.Context()
	store, err := sqlite.Open(ctx, so.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	service := domain.NewService(store)

	profile, err := opts.loadProfile(cmd)
	if err != nil {
		return err
	}
	for _, id := range runnerIDs {
		_, _, err := service.RegisterRunner(ctx, domain.RegisterRunnerInput{ID: id, Name: id, Profile: profile})
		if err != nil && !errors.Is(err, domain.ErrRunnerExists) {
			return fmt.Errorf("register %s: %w", id, err)
		}
	}

	source := gpx.Directory{Root: so.dir}
	out := cmd.OutOrStdout()
	if so.runnerID != "" {
		report, err := service.SyncFromSource(ctx, so.runnerID, source, since)
		printReport(out, so.runnerID, report)
		return err
	}

	batches := make(map[string][]domain.WorkoutInput, len(runnerIDs))
	for _, id := range runnerIDs {
		workouts, err := source.FetchWorkouts(ctx, id, since)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", id, err)
		}
		batches[id] = workouts
	}
	reports, err := service.SyncRunners(ctx, batches, so.parallelism)
	for _, id := range runnerIDs {
		printReport(out, id, reports[id])
	}
	return err
}

func printReport(out io.Writer, runnerID string, report domain.SyncReport) {
	fmt.Fprintf(out, "%s: %d ingested, %d duplicates, %d rejected\n", runnerID, report.Ingested, report.Duplicates, report.Rejected)
	for _, t := range report.Transitions {
		fmt.Fprintf(out, "  %s %s: %s -> %s\n", t.Role, t.Kind, t.From, t.To)
	}
}
