package domain

import (
	"context"
	"fmt"
	"slices"

	"example.com/tierrun/internal/ranking"
)

// ReclassifyResult is the outcome of ReclassifyRun. From is the tier the run
// left and To the tier it joined; both equal the run's tier when nothing changed.
type ReclassifyResult struct {
	Run          Run
	PreviousRole ranking.Role
	PreviousLP   int
	From         TierRecord
	To           TierRecord
	Transitions  []TierTransition
	Changed      bool
}

// ReclassifyRun moves a run to another role. The old tier loses the run's LP
// without ever being demoted; the run is rescored for the new role and the new
// tier gains that LP and is advanced. Moving a run to its current role is a no-op.
func (s *Service) ReclassifyRun(ctx context.Context, runID string, role ranking.Role) (*ReclassifyResult, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	runner, err := s.GetRunner(ctx, run.RunnerID)
	if err != nil {
		return nil, err
	}

	var result *ReclassifyResult
	unlock := s.locks.lock(run.RunnerID, ranking.Roles()...)
	err = s.retry(func() error {
		var err error
		result, err = s.reclassify(ctx, runID, role, runner.Profile)
		return err
	})
	unlock()
	if err != nil {
		return nil, err
	}

	if result.Changed {
		s.notify(ctx, result.Run, result.To, result.Transitions)
	}
	return result, nil
}

func (s *Service) reclassify(ctx context.Context, runID string, role ranking.Role, profile ranking.Profile) (*ReclassifyResult, error) {
	// Reload under the lock; the run may have moved since it was first read.
	current, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if current.Role == role {
		tier, err := s.loadTier(ctx, current.RunnerID, role)
		if err != nil {
			return nil, err
		}
		return &ReclassifyResult{
			Run:          *current,
			PreviousRole: role,
			PreviousLP:   current.LPEarned,
			From:         *tier,
			To:           *tier,
		}, nil
	}

	from, err := s.loadTier(ctx, current.RunnerID, current.Role)
	if err != nil {
		return nil, err
	}
	to, err := s.loadTier(ctx, current.RunnerID, role)
	if err != nil {
		return nil, err
	}
	to.State.History = slices.Clone(to.State.History)

	now := s.now()
	from.State.LP -= current.LPEarned
	from.UpdatedAt = now

	updated := *current
	updated.Role = role
	updated.LPEarned = ranking.CalculateLP(updated.Input(), profile)
	updated.UpdatedAt = now

	to.State.LP += updated.LPEarned
	to.UpdatedAt = now
	transitions := advance(to, now)

	if err := s.repo.ReclassifyRun(ctx, updated, *from, *to, transitions); err != nil {
		return nil, err
	}
	from.Version++
	to.Version++

	return &ReclassifyResult{
		Run:          updated,
		PreviousRole: current.Role,
		PreviousLP:   current.LPEarned,
		From:         *from,
		To:           *to,
		Transitions:  transitions,
		Changed:      true,
	}, nil
}

// DeleteRun removes a run and withdraws its LP from the role tier. The tier is
// never demoted, so its LP may end below the grade floor.
func (s *Service) DeleteRun(ctx context.Context, runID string) (*TierRecord, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	var tier TierRecord
	unlock := s.locks.lock(run.RunnerID, ranking.Roles()...)
	defer unlock()
	err = s.retry(func() error {
		current, err := s.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		loaded, err := s.loadTier(ctx, current.RunnerID, current.Role)
		if err != nil {
			return err
		}
		tier = *loaded
		tier.State.LP -= current.LPEarned
		tier.UpdatedAt = s.now()
		if err := s.repo.DeleteRun(ctx, *current, tier); err != nil {
			return err
		}
		tier.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tier, nil
}
