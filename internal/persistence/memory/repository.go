// Package memory provides an in-process repository for local development and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/persistence"
	"example.com/tierrun/internal/ranking"
)

type tierKey struct {
	runnerID string
	role     ranking.Role
}

// Repository stores runners, tiers and runs in maps guarded by a single lock.
type Repository struct {
	mu      sync.RWMutex
	runners map[string]domain.Runner
	tiers   map[tierKey]domain.TierRecord
	runs    map[string]domain.Run
	sources map[string]string
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{
		runners: make(map[string]domain.Runner),
		tiers:   make(map[tierKey]domain.TierRecord),
		runs:    make(map[string]domain.Run),
		sources: make(map[string]string),
	}
}

var _ domain.Repository = (*Repository)(nil)

// CreateRunner implements domain.Repository.
func (r *Repository) CreateRunner(_ context.Context, runner domain.Runner, tiers []domain.TierRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runners[runner.ID]; ok {
		return domain.ErrRunnerExists
	}
	r.runners[runner.ID] = runner
	for _, t := range tiers {
		r.tiers[tierKey{t.RunnerID, t.State.Role}] = cloneTier(t)
	}
	return nil
}

// GetRunner implements domain.Repository.
func (r *Repository) GetRunner(_ context.Context, runnerID string) (*domain.Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[runnerID]
	if !ok {
		return nil, nil
	}
	return &runner, nil
}

// UpdateRunner implements domain.Repository.
func (r *Repository) UpdateRunner(_ context.Context, runner domain.Runner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runners[runner.ID]; !ok {
		return domain.ErrRunnerNotFound
	}
	r.runners[runner.ID] = runner
	return nil
}

// GetTier implements domain.Repository.
func (r *Repository) GetTier(_ context.Context, runnerID string, role ranking.Role) (*domain.TierRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tier, ok := r.tiers[tierKey{runnerID, role}]
	if !ok {
		return nil, nil
	}
	tier = cloneTier(tier)
	return &tier, nil
}

// SaveTiers implements domain.Repository.
func (r *Repository) SaveTiers(_ context.Context, tiers []domain.TierRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkVersions(tiers...); err != nil {
		return err
	}
	r.putTiers(tiers...)
	return nil
}

// FindRunBySource implements domain.Repository.
func (r *Repository) FindRunBySource(_ context.Context, runnerID, sourceID string) (*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.sources[sourceKey(runnerID, sourceID)]
	if !ok {
		return nil, nil
	}
	run := r.runs[id]
	return &run, nil
}

// GetRun implements domain.Repository.
func (r *Repository) GetRun(_ context.Context, runID string) (*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[runID]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

// RecordRun implements domain.Repository.
func (r *Repository) RecordRun(_ context.Context, run domain.Run, tier domain.TierRecord, _ []domain.TierTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.SourceID != "" {
		if _, ok := r.sources[sourceKey(run.RunnerID, run.SourceID)]; ok {
			return domain.ErrDuplicateRun
		}
	}
	if err := r.checkVersions(tier); err != nil {
		return err
	}
	r.runs[run.ID] = run
	if run.SourceID != "" {
		r.sources[sourceKey(run.RunnerID, run.SourceID)] = run.ID
	}
	r.putTiers(tier)
	return nil
}

// ReclassifyRun implements domain.Repository.
func (r *Repository) ReclassifyRun(_ context.Context, run domain.Run, from, to domain.TierRecord, _ []domain.TierTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		return domain.ErrRunNotFound
	}
	if err := r.checkVersions(from, to); err != nil {
		return err
	}
	r.runs[run.ID] = run
	r.putTiers(from, to)
	return nil
}

// DeleteRun implements domain.Repository.
func (r *Repository) DeleteRun(_ context.Context, run domain.Run, tier domain.TierRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		return domain.ErrRunNotFound
	}
	if err := r.checkVersions(tier); err != nil {
		return err
	}
	delete(r.runs, run.ID)
	if run.SourceID != "" {
		delete(r.sources, sourceKey(run.RunnerID, run.SourceID))
	}
	r.putTiers(tier)
	return nil
}

// ListRuns implements domain.Repository.
func (r *Repository) ListRuns(_ context.Context, filter domain.RunFilter, cursor *domain.Cursor, limit int) ([]domain.Run, *domain.Cursor, error) {
	r.mu.RLock()
	matched := make([]domain.Run, 0)
	for _, run := range r.runs {
		if run.RunnerID != filter.RunnerID {
			continue
		}
		if filter.Role != "" && run.Role != filter.Role {
			continue
		}
		if !filter.Since.IsZero() && run.StartedAt.Before(filter.Since) {
			continue
		}
		if !persistence.AfterCursor(filter.Sort, run, cursor) {
			continue
		}
		matched = append(matched, run)
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, func(a, b domain.Run) int {
		return persistence.CompareRuns(filter.Sort, a, b)
	})
	if limit <= 0 || len(matched) <= limit {
		return matched, nil, nil
	}
	page := matched[:limit]
	return page, persistence.CursorAt(page[len(page)-1]), nil
}

func (r *Repository) checkVersions(tiers ...domain.TierRecord) error {
	for _, t := range tiers {
		stored, ok := r.tiers[tierKey{t.RunnerID, t.State.Role}]
		if !ok {
			return domain.ErrRunnerNotFound
		}
		if stored.Version != t.Version {
			return domain.ErrTierConflict
		}
	}
	return nil
}

func (r *Repository) putTiers(tiers ...domain.TierRecord) {
	for _, t := range tiers {
		t.Version++
		r.tiers[tierKey{t.RunnerID, t.State.Role}] = cloneTier(t)
	}
}

func cloneTier(t domain.TierRecord) domain.TierRecord {
	t.State.History = slices.Clone(t.State.History)
	return t
}

func sourceKey(runnerID, sourceID string) string {
	return runnerID + "\x00" + sourceID
}
