package api

import (
	"errors"
	"strings"
	"time"

	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/ranking"
)

// ProfileRequest carries the scoring profile of a runner.
type ProfileRequest struct {
	Age        int     `json:"age"`
	Sex        string  `json:"sex"`
	WeightKg   float64 `json:"weight_kg"`
	Experience string  `json:"experience"`
	MainRole   string  `json:"main_role,omitempty"`
}

func (p ProfileRequest) toProfile() ranking.Profile {
	return ranking.Profile{
		Age:        p.Age,
		Sex:        ranking.Sex(strings.ToLower(p.Sex)),
		WeightKg:   p.WeightKg,
		Experience: ranking.Experience(strings.ToLower(p.Experience)),
		MainRole:   ranking.Role(strings.ToLower(p.MainRole)),
	}
}

// RegisterRunnerRequest is the payload for POST /v1/runners. ID is honoured for
// admin callers only; everyone else registers as their token subject.
type RegisterRunnerRequest struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name"`
	Profile ProfileRequest `json:"profile"`
}

// WorkoutRequest is one workout as submitted by a client.
type WorkoutRequest struct {
	SourceID       string    `json:"source_id,omitempty"`
	SourceApp      string    `json:"source_app,omitempty"`
	Role           string    `json:"role,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	DistanceKm     float64   `json:"distance_km"`
	DurationSec    float64   `json:"duration_sec"`
	AvgHeartRate   int       `json:"avg_heart_rate,omitempty"`
	MaxHeartRate   int       `json:"max_heart_rate,omitempty"`
	Calories       int       `json:"calories,omitempty"`
	ElevationGainM float64   `json:"elevation_gain_m,omitempty"`
	Cadence        int       `json:"cadence,omitempty"`
}

func (w WorkoutRequest) toInput() domain.WorkoutInput {
	return domain.WorkoutInput{
		SourceID:       w.SourceID,
		SourceApp:      w.SourceApp,
		Role:           ranking.Role(strings.ToLower(w.Role)),
		StartedAt:      w.StartedAt,
		DistanceKm:     w.DistanceKm,
		DurationSec:    w.DurationSec,
		AvgHeartRate:   w.AvgHeartRate,
		MaxHeartRate:   w.MaxHeartRate,
		Calories:       w.Calories,
		ElevationGainM: w.ElevationGainM,
		Cadence:        w.Cadence,
	}
}

// WorkoutBatchRequest carries workouts for sync and placement.
type WorkoutBatchRequest struct {
	Workouts []WorkoutRequest `json:"workouts"`
}

// Validate ensures the batch is not empty.
func (b WorkoutBatchRequest) Validate() error {
	if len(b.Workouts) == 0 {
		return errors.New("workouts must not be empty")
	}
	return nil
}

func (b WorkoutBatchRequest) inputs() []domain.WorkoutInput {
	out := make([]domain.WorkoutInput, 0, len(b.Workouts))
	for _, w := range b.Workouts {
		out = append(out, w.toInput())
	}
	return out
}

// ReclassifyRequest is the payload for PATCH /v1/runs/{runID}.
type ReclassifyRequest struct {
	Role string `json:"role"`
}

// ProfileView exposes a runner profile.
type ProfileView struct {
	Age        int     `json:"age"`
	Sex        string  `json:"sex"`
	WeightKg   float64 `json:"weight_kg"`
	Experience string  `json:"experience"`
	MainRole   string  `json:"main_role,omitempty"`
}

// RunnerView exposes a runner with both ladders.
type RunnerView struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Profile   ProfileView `json:"profile"`
	CreatedAt time.Time   `json:"created_at"`
	Tiers     []TierView  `json:"tiers"`
}

// TierView exposes the ladder position of one role.
type TierView struct {
	Role         string                 `json:"role"`
	Tier         ranking.Tier           `json:"tier"`
	DisplayName  string                 `json:"display_name"`
	Color        string                 `json:"color"`
	Grade        int                    `json:"grade"`
	Name         string                 `json:"name"`
	LP           int                    `json:"lp"`
	GradeFloorLP int                    `json:"grade_floor_lp"`
	NextTierLP   int                    `json:"next_tier_lp"`
	Progress     float64                `json:"progress"`
	SeasonStart  time.Time              `json:"season_start"`
	History      []ranking.HistoryEntry `json:"history"`
	Version      int                    `json:"version"`
}

// RunView exposes one recorded run.
type RunView struct {
	ID             string    `json:"id"`
	RunnerID       string    `json:"runner_id"`
	SourceID       string    `json:"source_id,omitempty"`
	SourceApp      string    `json:"source_app,omitempty"`
	Role           string    `json:"role"`
	StartedAt      time.Time `json:"started_at"`
	DistanceKm     float64   `json:"distance_km"`
	DurationSec    float64   `json:"duration_sec"`
	AvgPace        float64   `json:"avg_pace"`
	AvgHeartRate   int       `json:"avg_heart_rate"`
	MaxHeartRate   int       `json:"max_heart_rate"`
	Calories       int       `json:"calories"`
	ElevationGainM float64   `json:"elevation_gain_m"`
	Cadence        int       `json:"cadence"`
	LPEarned       int       `json:"lp_earned"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TransitionView exposes a grade-up or promotion.
type TransitionView struct {
	Role       string    `json:"role"`
	Kind       string    `json:"kind"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	LP         int       `json:"lp"`
	OccurredAt time.Time `json:"occurred_at"`
}

// IngestResponse describes the outcome of recording a run.
type IngestResponse struct {
	Run         RunView          `json:"run"`
	Tier        TierView         `json:"tier"`
	Transitions []TransitionView `json:"transitions"`
	Replay      bool             `json:"replay"`
}

// SyncResponse summarises a batch sync.
type SyncResponse struct {
	Ingested    int              `json:"ingested"`
	Duplicates  int              `json:"duplicates"`
	Rejected    int              `json:"rejected"`
	Transitions []TransitionView `json:"transitions"`
}

// ScoreResponse is the LP a workout would earn.
type ScoreResponse struct {
	LP   int    `json:"lp"`
	Role string `json:"role"`
}

// RolePlacementView summarises the placement of one role.
type RolePlacementView struct {
	Role          string  `json:"role"`
	Placement     string  `json:"placement"`
	Workouts      int     `json:"workouts"`
	AvgDistanceKm float64 `json:"avg_distance_km"`
	Analysis      string  `json:"analysis"`
}

// PlacementResponse is the outcome of placement.
type PlacementResponse struct {
	Marathoner  RolePlacementView `json:"marathoner"`
	Sprinter    RolePlacementView `json:"sprinter"`
	Recommended string            `json:"recommended"`
	Tiers       []TierView        `json:"tiers"`
}

// ReclassifyResponse describes a reclassified run and both affected tiers.
type ReclassifyResponse struct {
	Run          RunView          `json:"run"`
	PreviousRole string           `json:"previous_role"`
	PreviousLP   int              `json:"previous_lp"`
	From         TierView         `json:"from"`
	To           TierView         `json:"to"`
	Transitions  []TransitionView `json:"transitions"`
	Changed      bool             `json:"changed"`
}

// ListRunsResponse packages list results.
type ListRunsResponse struct {
	Items      []RunView `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// TierStatsResponse aggregates LP over calendar windows.
type TierStatsResponse struct {
	Tier      TierView `json:"tier"`
	WeeklyLP  int      `json:"weekly_lp"`
	MonthlyLP int      `json:"monthly_lp"`
	SeasonLP  int      `json:"season_lp"`
}

// WeeklyProgressView compares this week's runs with the target.
type WeeklyProgressView struct {
	WeekStart  time.Time `json:"week_start"`
	Completed  int       `json:"completed"`
	Target     int       `json:"target"`
	DistanceKm float64   `json:"distance_km"`
	LP         int       `json:"lp"`
	Fraction   float64   `json:"fraction"`
}

// ProfileStatsResponse carries lifetime totals and the weekly goal.
type ProfileStatsResponse struct {
	TotalRuns       int                `json:"total_runs"`
	TotalDistanceKm float64            `json:"total_distance_km"`
	TotalLP         int                `json:"total_lp"`
	Week            WeeklyProgressView `json:"week"`
}

func toProfileView(p ranking.Profile) ProfileView {
	return ProfileView{
		Age:        p.Age,
		Sex:        string(p.Sex),
		WeightKg:   p.WeightKg,
		Experience: string(p.Experience),
		MainRole:   string(p.MainRole),
	}
}

func toTierView(t domain.TierRecord) TierView {
	s := t.State
	history := s.History
	if history == nil {
		history = []ranking.HistoryEntry{}
	}
	return TierView{
		Role:         string(s.Role),
		Tier:         s.Tier,
		DisplayName:  s.Tier.DisplayName(),
		Color:        s.Tier.Color(),
		Grade:        s.Grade,
		Name:         s.Name(),
		LP:           s.LP,
		GradeFloorLP: s.GradeFloorLP(),
		NextTierLP:   s.NextTierLP(),
		Progress:     s.Progress(),
		SeasonStart:  s.SeasonStart,
		History:      history,
		Version:      t.Version,
	}
}

func toTierViews(tiers []domain.TierRecord) []TierView {
	out := make([]TierView, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, toTierView(t))
	}
	return out
}

func toRunView(run domain.Run) RunView {
	return RunView{
		ID:             run.ID,
		RunnerID:       run.RunnerID,
		SourceID:       run.SourceID,
		SourceApp:      run.SourceApp,
		Role:           string(run.Role),
		StartedAt:      run.StartedAt,
		DistanceKm:     run.DistanceKm,
		DurationSec:    run.DurationSec,
		AvgPace:        run.AvgPace,
		AvgHeartRate:   run.AvgHeartRate,
		MaxHeartRate:   run.MaxHeartRate,
		Calories:       run.Calories,
		ElevationGainM: run.ElevationGainM,
		Cadence:        run.Cadence,
		LPEarned:       run.LPEarned,
		CreatedAt:      run.CreatedAt,
		UpdatedAt:      run.UpdatedAt,
	}
}

func toTransitionViews(transitions []domain.TierTransition) []TransitionView {
	out := make([]TransitionView, 0, len(transitions))
	for _, t := range transitions {
		out = append(out, TransitionView{
			Role:       string(t.Role),
			Kind:       t.Kind.String(),
			From:       t.From.String(),
			To:         t.To.String(),
			LP:         t.LP,
			OccurredAt: t.OccurredAt,
		})
	}
	return out
}

func toRolePlacementView(p domain.RolePlacement) RolePlacementView {
	return RolePlacementView{
		Role:          string(p.Role),
		Placement:     p.Placement.String(),
		Workouts:      p.Workouts,
		AvgDistanceKm: p.AvgDistanceKm,
		Analysis:      p.Analysis,
	}
}
