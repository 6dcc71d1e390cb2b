// Package events defines event payloads shared between the API, the outbox and consumers.
package events

import "time"

// Event type names as they appear in the outbox and in Kafka headers.
const (
	TypeRunScored        = "run.scored"
	TypeTierTransitioned = "tier.transitioned"
	TypeWorkoutRecorded  = "workout.recorded"
)

// RunScored is emitted whenever a run is persisted with its LP award, including
// after a reclassification recomputes it.
type RunScored struct {
	RunID      string    `json:"run_id"`
	RunnerID   string    `json:"runner_id"`
	Role       string    `json:"role"`
	DistanceKm float64   `json:"distance_km"`
	LPEarned   int       `json:"lp_earned"`
	TierLP     int       `json:"tier_lp"`
	StartedAt  time.Time `json:"started_at"`
	ScoredAt   time.Time `json:"scored_at"`
}

// TierTransitioned carries a grade-up or promotion for a runner's role ladder.
type TierTransitioned struct {
	RunnerID   string    `json:"runner_id"`
	Role       string    `json:"role"`
	Kind       string    `json:"kind"`
	FromTier   string    `json:"from_tier"`
	FromGrade  int       `json:"from_grade"`
	Tier       string    `json:"tier"`
	Grade      int       `json:"grade"`
	LP         int       `json:"lp"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WorkoutRecorded is published by workout sources (watch sync, third-party apps)
// and consumed to drive ingestion.
type WorkoutRecorded struct {
	RunnerID       string    `json:"runner_id"`
	SourceID       string    `json:"source_id"`
	SourceApp      string    `json:"source_app,omitempty"`
	Role           string    `json:"role,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	DistanceKm     float64   `json:"distance_km"`
	DurationSec    float64   `json:"duration_sec"`
	AvgHeartRate   int       `json:"avg_heart_rate"`
	MaxHeartRate   int       `json:"max_heart_rate"`
	Calories       int       `json:"calories"`
	ElevationGainM float64   `json:"elevation_gain_m"`
	Cadence        int       `json:"cadence"`
}
