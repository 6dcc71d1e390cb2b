package domain

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"example.com/tierrun/internal/observability"
	"example.com/tierrun/internal/ranking"
)

// IngestResult is the outcome of IngestRun. Replay is set when the source id was
// already recorded; Run and Tier then reflect the stored state.
type IngestResult struct {
	Run         Run
	Tier        TierRecord
	Transitions []TierTransition
	Replay      bool
}

// SyncReport summarises a batch sync.
type SyncReport struct {
	Ingested    int
	Duplicates  int
	Rejected    int
	Transitions []TierTransition
}

// IngestRun scores a workout, adds its LP to the role tier, applies every
// transition earned and persists run and tier together.
func (s *Service) IngestRun(ctx context.Context, runnerID string, in WorkoutInput) (*IngestResult, error) {
	if err := ranking.ValidateRun(in.DistanceKm, in.DurationSec); err != nil {
		observability.RecordRunOutcome("rejected")
		return nil, err
	}
	role, err := resolveRole(in)
	if err != nil {
		observability.RecordRunOutcome("rejected")
		return nil, err
	}

	runner, err := s.GetRunner(ctx, runnerID)
	if err != nil {
		return nil, err
	}
	if replay, err := s.findReplay(ctx, runnerID, in.SourceID); err != nil || replay != nil {
		return replay, err
	}

	now := s.now()
	run := newRun(runnerID, role, in, now)
	run.LPEarned = ranking.CalculateLP(run.Input(), runner.Profile)

	var (
		tier        TierRecord
		transitions []TierTransition
	)
	unlock := s.locks.lock(runnerID, role)
	err = s.retry(func() error {
		current, err := s.loadTier(ctx, runnerID, role)
		if err != nil {
			return err
		}
		tier = *current
		tier.State.History = slices.Clone(current.State.History)
		tier.State.LP += run.LPEarned
		tier.UpdatedAt = now
		transitions = advance(&tier, now)
		if err := s.repo.RecordRun(ctx, run, tier, transitions); err != nil {
			return err
		}
		tier.Version++
		return nil
	})
	unlock()

	if errors.Is(err, ErrDuplicateRun) {
		return s.findReplay(ctx, runnerID, in.SourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}

	observability.RecordRunOutcome("ingested")
	observability.RecordLPAwarded(string(role), run.LPEarned)
	observability.RecordRunPersisted(now)
	s.notify(ctx, run, tier, transitions)

	return &IngestResult{Run: run, Tier: tier, Transitions: transitions}, nil
}

// SyncWorkouts ingests a batch in chronological order. Cancellation is checked
// between runs: runs already applied stay applied and the report covers them.
func (s *Service) SyncWorkouts(ctx context.Context, runnerID string, workouts []WorkoutInput) (SyncReport, error) {
	var report SyncReport
	if _, err := s.GetRunner(ctx, runnerID); err != nil {
		return report, err
	}

	// Undated workouts are stamped with now, so they go after every dated one.
	ordered := slices.Clone(workouts)
	slices.SortStableFunc(ordered, func(a, b WorkoutInput) int {
		return cmp.Or(
			cmp.Compare(undated(a), undated(b)),
			a.StartedAt.Compare(b.StartedAt),
			strings.Compare(a.SourceID, b.SourceID),
		)
	})

	for _, w := range ordered {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		// A run that has started is finished even if ctx is cancelled meanwhile.
		result, err := s.IngestRun(context.WithoutCancel(ctx), runnerID, w)
		switch {
		case IsRejection(err):
			report.Rejected++
			continue
		case err != nil:
			return report, fmt.Errorf("sync %s: %w", w.SourceID, err)
		}
		if result.Replay {
			report.Duplicates++
			continue
		}
		report.Ingested++
		report.Transitions = append(report.Transitions, result.Transitions...)
	}
	return report, nil
}

// SyncFromSource pulls workouts recorded since the given time and syncs them.
func (s *Service) SyncFromSource(ctx context.Context, runnerID string, source WorkoutSource, since time.Time) (SyncReport, error) {
	workouts, err := source.FetchWorkouts(ctx, runnerID, since)
	if err != nil {
		return SyncReport{}, fmt.Errorf("fetch workouts: %w", err)
	}
	return s.SyncWorkouts(ctx, runnerID, workouts)
}

// SyncRunners syncs several runners concurrently, each runner sequentially. One
// runner failing does not stop the others; failures are joined in the error.
func (s *Service) SyncRunners(ctx context.Context, batches map[string][]WorkoutInput, parallelism int) (map[string]SyncReport, error) {
	var (
		mu      sync.Mutex
		reports = make(map[string]SyncReport, len(batches))
		errs    []error
		g       errgroup.Group
	)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	for runnerID, workouts := range batches {
		g.Go(func() error {
			report, err := s.SyncWorkouts(ctx, runnerID, workouts)
			mu.Lock()
			defer mu.Unlock()
			reports[runnerID] = report
			if err != nil {
				errs = append(errs, fmt.Errorf("runner %s: %w", runnerID, err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return reports, errors.Join(errs...)
}

func (s *Service) findReplay(ctx context.Context, runnerID, sourceID string) (*IngestResult, error) {
	if sourceID == "" {
		return nil, nil
	}
	existing, err := s.repo.FindRunBySource(ctx, runnerID, sourceID)
	if err != nil || existing == nil {
		return nil, err
	}
	tier, err := s.loadTier(ctx, runnerID, existing.Role)
	if err != nil {
		return nil, err
	}
	observability.RecordRunOutcome("duplicate")
	return &IngestResult{Run: *existing, Tier: *tier, Replay: true}, nil
}

func resolveRole(in WorkoutInput) (ranking.Role, error) {
	if in.Role == "" {
		return ranking.ClassifyRole(in.DistanceKm, ranking.Pace(in.DurationSec, in.DistanceKm)), nil
	}
	if !in.Role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, in.Role)
	}
	return in.Role, nil
}

// IsRejection reports whether err means the workout itself is unacceptable, as
// opposed to a storage or lookup failure.
func IsRejection(err error) bool {
	return errors.Is(err, ranking.ErrRunTooShort) ||
		errors.Is(err, ranking.ErrInvalidRun) ||
		errors.Is(err, ErrInvalidRole)
}

func undated(w WorkoutInput) int {
	if w.StartedAt.IsZero() {
		return 1
	}
	return 0
}

func newRun(runnerID string, role ranking.Role, in WorkoutInput, now time.Time) Run {
	startedAt := in.StartedAt
	if startedAt.IsZero() {
		startedAt = now
	}
	return Run{
		ID:             uuid.NewString(),
		RunnerID:       runnerID,
		SourceID:       in.SourceID,
		SourceApp:      in.SourceApp,
		Role:           role,
		StartedAt:      startedAt.UTC(),
		DistanceKm:     in.DistanceKm,
		DurationSec:    in.DurationSec,
		AvgPace:        ranking.Pace(in.DurationSec, in.DistanceKm),
		AvgHeartRate:   in.AvgHeartRate,
		MaxHeartRate:   in.MaxHeartRate,
		Calories:       in.Calories,
		ElevationGainM: in.ElevationGainM,
		Cadence:        in.Cadence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
