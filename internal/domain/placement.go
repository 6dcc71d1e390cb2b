package domain

import (
	"context"
	"fmt"

	"example.com/tierrun/internal/ranking"
)

// RolePlacement summarises the placement of one role.
type RolePlacement struct {
	Role          ranking.Role
	Placement     ranking.Placement
	Workouts      int
	AvgDistanceKm float64
	Analysis      string
}

// PlacementResult is the outcome of PlaceRunner.
type PlacementResult struct {
	Marathoner  RolePlacement
	Sprinter    RolePlacement
	Recommended ranking.Role
	Tiers       []TierRecord
}

// PlaceRunner seeds both role tiers from a history of past workouts. Workouts that
// fail validation are skipped. Each tier is set to its placement's seed LP and a
// new season starts; the recommended role becomes the runner's main role.
func (s *Service) PlaceRunner(ctx context.Context, runnerID string, workouts []WorkoutInput) (*PlacementResult, error) {
	runner, err := s.GetRunner(ctx, runnerID)
	if err != nil {
		return nil, err
	}

	byRole := make(map[ranking.Role][]ranking.RunInput, 2)
	for _, w := range workouts {
		if ranking.ValidateRun(w.DistanceKm, w.DurationSec) != nil {
			continue
		}
		role, err := resolveRole(w)
		if err != nil {
			continue
		}
		byRole[role] = append(byRole[role], newRun(runnerID, role, w, s.now()).Input())
	}

	result := PlacementResult{
		Marathoner: summarisePlacement(ranking.RoleMarathoner, byRole[ranking.RoleMarathoner], runner.Profile),
		Sprinter:   summarisePlacement(ranking.RoleSprinter, byRole[ranking.RoleSprinter], runner.Profile),
	}
	result.Recommended = ranking.RoleSprinter
	if result.Marathoner.Workouts > result.Sprinter.Workouts {
		result.Recommended = ranking.RoleMarathoner
	}

	unlock := s.locks.lock(runnerID, ranking.Roles()...)
	defer unlock()
	err = s.retry(func() error {
		now := s.now()
		tiers := make([]TierRecord, 0, 2)
		for _, placed := range []RolePlacement{result.Marathoner, result.Sprinter} {
			tier, err := s.loadTier(ctx, runnerID, placed.Role)
			if err != nil {
				return err
			}
			tier.State.Tier = placed.Placement.Tier
			tier.State.Grade = placed.Placement.Grade
			tier.State.LP = placed.Placement.SeedLP()
			tier.State.SeasonStart = now
			tier.UpdatedAt = now
			tiers = append(tiers, *tier)
		}
		if err := s.repo.SaveTiers(ctx, tiers); err != nil {
			return err
		}
		for i := range tiers {
			tiers[i].Version++
		}
		result.Tiers = tiers
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save placement: %w", err)
	}

	runner.Profile.MainRole = result.Recommended
	runner.UpdatedAt = s.now()
	if err := s.repo.UpdateRunner(ctx, *runner); err != nil {
		return nil, fmt.Errorf("update main role: %w", err)
	}
	return &result, nil
}

func summarisePlacement(role ranking.Role, runs []ranking.RunInput, profile ranking.Profile) RolePlacement {
	placed := RolePlacement{
		Role:      role,
		Placement: ranking.PlaceFromHistory(runs, profile),
		Workouts:  len(runs),
	}
	if len(runs) == 0 {
		placed.Analysis = fmt.Sprintf("No recent data found. You'll start in %s tier.", placed.Placement.Tier.DisplayName())
		return placed
	}

	var total float64
	for _, r := range runs {
		total += r.DistanceKm
	}
	placed.AvgDistanceKm = total / float64(len(runs))
	placed.Analysis = fmt.Sprintf("Based on %d runs with average distance of %.1f km", len(runs), placed.AvgDistanceKm)
	return placed
}
