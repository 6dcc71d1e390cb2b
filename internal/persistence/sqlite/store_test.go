package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/ranking"
)

var testProfile = ranking.Profile{Age: 30, Sex: ranking.SexMale, Experience: ranking.Advanced}

func openTempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tierrun.db")
	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	require.Error(t, err)
}

func TestStoreBacksServiceWorkflow(t *testing.T) {
	store, path := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.November, 5, 18, 0, 0, 0, time.UTC)
	svc := domain.NewService(store, domain.WithClock(func() time.Time { return now }))

	runner, _, err := svc.RegisterRunner(ctx, domain.RegisterRunnerInput{Name: "Ada", Profile: testProfile})
	require.NoError(t, err)

	workout := domain.WorkoutInput{
		SourceID:     "hk-1",
		StartedAt:    now.Add(-time.Hour),
		DistanceKm:   10,
		DurationSec:  3600,
		AvgHeartRate: 140,
		MaxHeartRate: 170,
	}
	result, err := svc.IngestRun(ctx, runner.ID, workout)
	require.NoError(t, err)
	require.Equal(t, 38, result.Tier.State.LP)

	replay, err := svc.IngestRun(ctx, runner.ID, workout)
	require.NoError(t, err)
	require.True(t, replay.Replay)
	require.Equal(t, result.Run, replay.Run)

	reclassified, err := svc.ReclassifyRun(ctx, result.Run.ID, ranking.RoleSprinter)
	require.NoError(t, err)
	require.True(t, reclassified.Changed)

	// Reopen to prove state survives and migrations are idempotent.
	require.NoError(t, store.Close())
	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	marathoner, err := reopened.GetTier(ctx, runner.ID, ranking.RoleMarathoner)
	require.NoError(t, err)
	require.Equal(t, 0, marathoner.State.LP)

	sprinter, err := reopened.GetTier(ctx, runner.ID, ranking.RoleSprinter)
	require.NoError(t, err)
	require.Equal(t, reclassified.To, *sprinter)

	run, err := reopened.GetRun(ctx, result.Run.ID)
	require.NoError(t, err)
	require.Equal(t, ranking.RoleSprinter, run.Role)
	require.Equal(t, reclassified.Run.LPEarned, run.LPEarned)
}

func TestStoreRejectsStaleTierVersion(t *testing.T) {
	store, _ := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.November, 5, 18, 0, 0, 0, time.UTC)

	tier := domain.TierRecord{RunnerID: "r1", State: ranking.NewState(ranking.RoleMarathoner, now), Version: 1, UpdatedAt: now}
	require.NoError(t, store.CreateRunner(ctx, domain.Runner{ID: "r1", Profile: testProfile, CreatedAt: now, UpdatedAt: now}, []domain.TierRecord{tier}))
	require.ErrorIs(t, store.CreateRunner(ctx, domain.Runner{ID: "r1", Profile: testProfile}, nil), domain.ErrRunnerExists)

	tier.State.LP = 50
	require.NoError(t, store.SaveTiers(ctx, []domain.TierRecord{tier}))

	tier.State.LP = 70
	require.ErrorIs(t, store.SaveTiers(ctx, []domain.TierRecord{tier}), domain.ErrTierConflict)

	stored, err := store.GetTier(ctx, "r1", ranking.RoleMarathoner)
	require.NoError(t, err)
	require.Equal(t, 50, stored.State.LP)
	require.Equal(t, 2, stored.Version)

	run := domain.Run{ID: "run-1", RunnerID: "r1", SourceID: "s1", Role: ranking.RoleMarathoner, StartedAt: now, DistanceKm: 5, DurationSec: 1800, LPEarned: 10}
	stored.State.LP += 10
	require.NoError(t, store.RecordRun(ctx, run, *stored, nil))

	run.ID = "run-2"
	stored.Version++
	require.ErrorIs(t, store.RecordRun(ctx, run, *stored, nil), domain.ErrDuplicateRun)

	missing, err := store.GetRun(ctx, "run-2")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestStoreListRunsSortsAndPaginates(t *testing.T) {
	store, _ := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.November, 5, 18, 0, 0, 0, time.UTC)

	tiers := []domain.TierRecord{
		{RunnerID: "r1", State: ranking.NewState(ranking.RoleMarathoner, now), Version: 1},
		{RunnerID: "r1", State: ranking.NewState(ranking.RoleSprinter, now), Version: 1},
	}
	require.NoError(t, store.CreateRunner(ctx, domain.Runner{ID: "r1", Profile: testProfile}, tiers))

	version := map[ranking.Role]int{ranking.RoleMarathoner: 1, ranking.RoleSprinter: 1}
	for i := range 6 {
		role := ranking.RoleMarathoner
		if i%2 == 1 {
			role = ranking.RoleSprinter
		}
		run := domain.Run{
			ID:          fmt.Sprintf("run-%d", i),
			RunnerID:    "r1",
			Role:        role,
			StartedAt:   now.Add(-time.Duration(i) * 24 * time.Hour),
			DistanceKm:  float64(3 + i),
			DurationSec: 1800,
			LPEarned:    10,
		}
		tier := domain.TierRecord{RunnerID: "r1", State: ranking.NewState(role, now), Version: version[role]}
		require.NoError(t, store.RecordRun(ctx, run, tier, nil))
		version[role]++
	}

	var ids []string
	var cursor *domain.Cursor
	for {
		page, next, err := store.ListRuns(ctx, domain.RunFilter{RunnerID: "r1", Sort: domain.SortDateDesc}, cursor, 4)
		require.NoError(t, err)
		for _, run := range page {
			ids = append(ids, run.ID)
		}
		if next == nil {
			break
		}
		cursor = next
	}
	require.Equal(t, []string{"run-0", "run-1", "run-2", "run-3", "run-4", "run-5"}, ids)

	sprints, _, err := store.ListRuns(ctx, domain.RunFilter{RunnerID: "r1", Role: ranking.RoleSprinter, Sort: domain.SortDistanceDesc}, nil, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"run-5", "run-3", "run-1"}, []string{sprints[0].ID, sprints[1].ID, sprints[2].ID})

	recent, _, err := store.ListRuns(ctx, domain.RunFilter{RunnerID: "r1", Since: now.Add(-48 * time.Hour), Sort: domain.SortDateAsc}, nil, 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, "run-2", recent[0].ID)
}
