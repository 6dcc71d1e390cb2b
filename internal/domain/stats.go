package domain

import (
	"context"
	"fmt"
	"time"

	"example.com/tierrun/internal/ranking"
)

// WeeklyRunTarget is the number of runs per week the progress view aims for.
const WeeklyRunTarget = 3

// TierStats aggregates the LP a role earned over calendar windows.
type TierStats struct {
	Tier      TierRecord
	WeeklyLP  int
	MonthlyLP int
	SeasonLP  int
}

// ProfileStats aggregates a runner's lifetime totals.
type ProfileStats struct {
	TotalRuns       int
	TotalDistanceKm float64
	TotalLP         int
}

// WeeklyProgress compares this week's runs with WeeklyRunTarget.
type WeeklyProgress struct {
	WeekStart  time.Time
	Completed  int
	Target     int
	DistanceKm float64
	LP         int
}

// Fraction is Completed over Target, capped at 1.
func (w WeeklyProgress) Fraction() float64 {
	if w.Target <= 0 {
		return 0
	}
	return min(1, float64(w.Completed)/float64(w.Target))
}

// TierStats sums the LP one role earned this week, this month and this season.
// Weeks start on Monday; all windows use now's location.
func (s *Service) TierStats(ctx context.Context, runnerID string, role ranking.Role, now time.Time) (*TierStats, error) {
	tier, err := s.GetTier(ctx, runnerID, role)
	if err != nil {
		return nil, err
	}

	weekStart := startOfWeek(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	since := weekStart
	if monthStart.Before(since) {
		since = monthStart
	}
	seasonStart := tier.State.SeasonStart
	if seasonStart.Before(since) {
		since = seasonStart
	}

	runs, _, err := s.repo.ListRuns(ctx, RunFilter{RunnerID: runnerID, Role: role, Since: since, Sort: SortDateAsc}, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	stats := &TierStats{Tier: *tier}
	for _, r := range runs {
		if !r.StartedAt.Before(weekStart) {
			stats.WeeklyLP += r.LPEarned
		}
		if !r.StartedAt.Before(monthStart) {
			stats.MonthlyLP += r.LPEarned
		}
		if !r.StartedAt.Before(seasonStart) {
			stats.SeasonLP += r.LPEarned
		}
	}
	return stats, nil
}

// ProfileStats totals every run of a runner across both roles.
func (s *Service) ProfileStats(ctx context.Context, runnerID string) (*ProfileStats, error) {
	if _, err := s.GetRunner(ctx, runnerID); err != nil {
		return nil, err
	}
	runs, _, err := s.repo.ListRuns(ctx, RunFilter{RunnerID: runnerID, Sort: SortDateAsc}, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	stats := &ProfileStats{TotalRuns: len(runs)}
	for _, r := range runs {
		stats.TotalDistanceKm += r.DistanceKm
		stats.TotalLP += r.LPEarned
	}
	return stats, nil
}

// WeeklyProgress counts the runs of the week containing now.
func (s *Service) WeeklyProgress(ctx context.Context, runnerID string, now time.Time) (*WeeklyProgress, error) {
	if _, err := s.GetRunner(ctx, runnerID); err != nil {
		return nil, err
	}
	weekStart := startOfWeek(now)
	runs, _, err := s.repo.ListRuns(ctx, RunFilter{RunnerID: runnerID, Since: weekStart, Sort: SortDateAsc}, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	progress := &WeeklyProgress{WeekStart: weekStart, Target: WeeklyRunTarget}
	for _, r := range runs {
		progress.Completed++
		progress.DistanceKm += r.DistanceKm
		progress.LP += r.LPEarned
	}
	return progress, nil
}

func startOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
