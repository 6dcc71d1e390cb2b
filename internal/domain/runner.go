// Package domain implements runner ranking workflows on top of the ranking engine.
package domain

import (
	"context"
	"errors"
	"time"

	"example.com/tierrun/internal/ranking"
)

var (
	// ErrRunnerNotFound is returned when a runner cannot be located.
	ErrRunnerNotFound = errors.New("runner not found")
	// ErrRunNotFound is returned when a run cannot be located.
	ErrRunNotFound = errors.New("run not found")
	// ErrInvalidRole is returned when a caller names a role outside the ladder set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrTierConflict is returned by repositories when a tier changed since it was loaded.
	ErrTierConflict = errors.New("tier was modified concurrently")
	// ErrInvalidSort is returned when ListRuns is asked for an unknown ordering.
	ErrInvalidSort = errors.New("invalid sort")
	// ErrDuplicateRun is returned by repositories when a run with the same source id exists.
	ErrDuplicateRun = errors.New("run already recorded for source id")
)

// Runner is the ranked athlete. Tiers and runs reference it by ID.
type Runner struct {
	ID        string
	Name      string
	Profile   ranking.Profile
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Run is one recorded workout with the LP it earned in its role.
type Run struct {
	ID             string
	RunnerID       string
	SourceID       string
	SourceApp      string
	Role           ranking.Role
	StartedAt      time.Time
	DistanceKm     float64
	DurationSec    float64
	AvgPace        float64
	AvgHeartRate   int
	MaxHeartRate   int
	Calories       int
	ElevationGainM float64
	Cadence        int
	LPEarned       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Input returns the fields scoring reads.
func (r Run) Input() ranking.RunInput {
	return ranking.RunInput{
		Role:           r.Role,
		DistanceKm:     r.DistanceKm,
		DurationSec:    r.DurationSec,
		AvgPace:        r.AvgPace,
		AvgHeartRate:   r.AvgHeartRate,
		MaxHeartRate:   r.MaxHeartRate,
		ElevationGainM: r.ElevationGainM,
	}
}

// TierRecord is the persisted ladder state of one runner in one role. Version is
// bumped by the repository on every write and used for optimistic concurrency.
type TierRecord struct {
	RunnerID  string
	State     ranking.State
	Version   int
	UpdatedAt time.Time
}

// TierTransition describes a single grade-up or promotion.
type TierTransition struct {
	RunnerID   string
	Role       ranking.Role
	Kind       ranking.TransitionKind
	From       ranking.Placement
	To         ranking.Placement
	LP         int
	OccurredAt time.Time
}

// WorkoutInput is a workout as delivered by a client or a workout source. Role is
// optional; when empty the run is classified from distance and pace.
type WorkoutInput struct {
	SourceID       string
	SourceApp      string
	Role           ranking.Role
	StartedAt      time.Time
	DistanceKm     float64
	DurationSec    float64
	AvgHeartRate   int
	MaxHeartRate   int
	Calories       int
	ElevationGainM float64
	Cadence        int
}

// RunSort selects the ordering of ListRuns.
type RunSort string

const (
	SortDateDesc     RunSort = "date_desc"
	SortDateAsc      RunSort = "date_asc"
	SortDistanceDesc RunSort = "distance_desc"
	SortDistanceAsc  RunSort = "distance_asc"
)

// Valid reports whether s is a known ordering.
func (s RunSort) Valid() bool {
	switch s {
	case SortDateDesc, SortDateAsc, SortDistanceDesc, SortDistanceAsc:
		return true
	}
	return false
}

// RunFilter narrows ListRuns. Empty Role matches both roles, zero Since matches all runs.
type RunFilter struct {
	RunnerID string
	Role     ranking.Role
	Since    time.Time
	Sort     RunSort
}

// Cursor models the pagination token. Key is the sort key of the last row
// returned: the start time for date orderings and the distance for distance orderings.
type Cursor struct {
	StartedAt  time.Time
	DistanceKm float64
	ID         string
}

// Repository captures persistence operations. Getters return (nil, nil) when
// nothing matches. The Record, Reclassify and Delete writes are atomic: the run,
// the tier rows and any outbox events commit together or not at all, and every
// tier write fails with ErrTierConflict if the stored version moved on.
type Repository interface {
	CreateRunner(ctx context.Context, runner Runner, tiers []TierRecord) error
	GetRunner(ctx context.Context, runnerID string) (*Runner, error)
	UpdateRunner(ctx context.Context, runner Runner) error
	GetTier(ctx context.Context, runnerID string, role ranking.Role) (*TierRecord, error)
	SaveTiers(ctx context.Context, tiers []TierRecord) error
	FindRunBySource(ctx context.Context, runnerID, sourceID string) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	RecordRun(ctx context.Context, run Run, tier TierRecord, transitions []TierTransition) error
	ReclassifyRun(ctx context.Context, run Run, from, to TierRecord, transitions []TierTransition) error
	DeleteRun(ctx context.Context, run Run, tier TierRecord) error
	ListRuns(ctx context.Context, filter RunFilter, cursor *Cursor, limit int) ([]Run, *Cursor, error)
}

// Notifier receives scoring outcomes after they are committed.
type Notifier interface {
	NotifyRunScored(ctx context.Context, run Run, tier TierRecord) error
	NotifyTransition(ctx context.Context, transition TierTransition) error
}

// WorkoutSource fetches workouts recorded by an external system.
type WorkoutSource interface {
	FetchWorkouts(ctx context.Context, runnerID string, since time.Time) ([]WorkoutInput, error)
}

type noopNotifier struct{}

func (noopNotifier) NotifyRunScored(context.Context, Run, TierRecord) error { return nil }
func (noopNotifier) NotifyTransition(context.Context, TierTransition) error { return nil }
