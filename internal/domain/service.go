package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/tierrun/internal/observability"
	"example.com/tierrun/internal/ranking"
)

// ErrRunnerExists is returned by CreateRunner when the id is taken.
var ErrRunnerExists = errors.New("runner already exists")

// maxWriteAttempts bounds optimistic retries of a tier read-modify-write.
const maxWriteAttempts = 3

// Service orchestrates runner, run and tier workflows.
type Service struct {
	repo     Repository
	notifier Notifier
	locks    *tierLocks
	now      func() time.Time
	logger   *log.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithNotifier sets the collaborator told about scored runs and transitions.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		notifier: noopNotifier{},
		locks:    newTierLocks(),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   log.New(log.Writer(), "[domain] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRunnerInput captures the payload from the API layer. ID is optional.
type RegisterRunnerInput struct {
	ID      string
	Name    string
	Profile ranking.Profile
}

// RegisterRunner creates a runner with both role tiers at the entry position.
func (s *Service) RegisterRunner(ctx context.Context, input RegisterRunnerInput) (*Runner, []TierRecord, error) {
	if err := input.Profile.Validate(); err != nil {
		return nil, nil, err
	}

	now := s.now()
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	runner := Runner{
		ID:        id,
		Name:      input.Name,
		Profile:   input.Profile,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tiers := make([]TierRecord, 0, len(ranking.Roles()))
	for _, role := range ranking.Roles() {
		tiers = append(tiers, TierRecord{
			RunnerID:  id,
			State:     ranking.NewState(role, now),
			Version:   1,
			UpdatedAt: now,
		})
	}

	if err := s.repo.CreateRunner(ctx, runner, tiers); err != nil {
		return nil, nil, err
	}
	return &runner, tiers, nil
}

// GetRunner fetches by ID.
func (s *Service) GetRunner(ctx context.Context, runnerID string) (*Runner, error) {
	runner, err := s.repo.GetRunner(ctx, runnerID)
	if err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, ErrRunnerNotFound
	}
	return runner, nil
}

// UpdateProfile replaces the scoring profile. Already scored runs keep their LP.
func (s *Service) UpdateProfile(ctx context.Context, runnerID string, profile ranking.Profile) (*Runner, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	runner, err := s.GetRunner(ctx, runnerID)
	if err != nil {
		return nil, err
	}
	runner.Profile = profile
	runner.UpdatedAt = s.now()
	if err := s.repo.UpdateRunner(ctx, *runner); err != nil {
		return nil, err
	}
	return runner, nil
}

// GetTier fetches the ladder state of one role.
func (s *Service) GetTier(ctx context.Context, runnerID string, role ranking.Role) (*TierRecord, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return s.loadTier(ctx, runnerID, role)
}

// GetRun fetches a run by ID.
func (s *Service) GetRun(ctx context.Context, runID string) (*Run, error) {
	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// ListRuns fetches runs with cursor pagination. A limit <= 0 returns every match.
func (s *Service) ListRuns(ctx context.Context, filter RunFilter, cursor *Cursor, limit int) ([]Run, *Cursor, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidRole, filter.Role)
	}
	if filter.Sort == "" {
		filter.Sort = SortDateDesc
	}
	if !filter.Sort.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidSort, filter.Sort)
	}
	return s.repo.ListRuns(ctx, filter, cursor, limit)
}

// PreviewLP scores a workout against the runner's profile without persisting it.
func (s *Service) PreviewLP(ctx context.Context, runnerID string, in WorkoutInput) (int, ranking.Role, error) {
	runner, err := s.GetRunner(ctx, runnerID)
	if err != nil {
		return 0, "", err
	}
	role, err := resolveRole(in)
	if err != nil {
		return 0, "", err
	}
	run := newRun(runnerID, role, in, time.Time{})
	return ranking.ComputeRunLP(run.Input(), &runner.Profile), role, nil
}

func (s *Service) loadTier(ctx context.Context, runnerID string, role ranking.Role) (*TierRecord, error) {
	tier, err := s.repo.GetTier(ctx, runnerID, role)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, ErrRunnerNotFound
	}
	return tier, nil
}

// retry runs fn until it stops failing with ErrTierConflict or the attempts run out.
func (s *Service) retry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		if err = fn(); !errors.Is(err, ErrTierConflict) {
			return err
		}
		observability.RecordTierConflict()
		s.logger.Printf("tier conflict on attempt %d/%d", attempt, maxWriteAttempts)
	}
	return err
}

// advance applies every transition the tier's LP earns and describes each step.
func advance(tier *TierRecord, at time.Time) []TierTransition {
	var taken []TierTransition
	for {
		from := ranking.Placement{Tier: tier.State.Tier, Grade: tier.State.Grade}
		step := ranking.Evaluate(tier.State)
		if !step.Changed() {
			return taken
		}
		ranking.Apply(&tier.State, step, at)
		taken = append(taken, TierTransition{
			RunnerID:   tier.RunnerID,
			Role:       tier.State.Role,
			Kind:       step.Kind,
			From:       from,
			To:         ranking.Placement{Tier: tier.State.Tier, Grade: tier.State.Grade},
			LP:         tier.State.LP,
			OccurredAt: at,
		})
	}
}

func (s *Service) notify(ctx context.Context, run Run, tier TierRecord, transitions []TierTransition) {
	if err := s.notifier.NotifyRunScored(ctx, run, tier); err != nil {
		s.logger.Printf("notify run %s scored: %v", run.ID, err)
	}
	for _, t := range transitions {
		observability.RecordTransition(string(t.Role), t.Kind.String())
		if err := s.notifier.NotifyTransition(ctx, t); err != nil {
			s.logger.Printf("notify %s %s for runner %s: %v", t.Role, t.Kind, t.RunnerID, err)
		}
	}
}
