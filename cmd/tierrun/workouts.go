package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/ranking"
	"example.com/tierrun/internal/workoutsource/gpx"
)

// workoutRecord is one workout in a yaml or json batch file.
type workoutRecord struct {
	SourceID       string  `yaml:"source_id"`
	SourceApp      string  `yaml:"source_app"`
	Role           string  `yaml:"role"`
	StartedAt      string  `yaml:"started_at"`
	DistanceKm     float64 `yaml:"distance_km"`
	DurationSec    float64 `yaml:"duration_sec"`
	AvgHeartRate   int     `yaml:"avg_heart_rate"`
	MaxHeartRate   int     `yaml:"max_heart_rate"`
	Calories       int     `yaml:"calories"`
	ElevationGainM float64 `yaml:"elevation_gain_m"`
	Cadence        int     `yaml:"cadence"`
}

func (r workoutRecord) input() (domain.WorkoutInput, error) {
	in := domain.WorkoutInput{
		SourceID:       r.SourceID,
		SourceApp:      r.SourceApp,
		Role:           ranking.Role(strings.ToLower(r.Role)),
		DistanceKm:     r.DistanceKm,
		DurationSec:    r.DurationSec,
		AvgHeartRate:   r.AvgHeartRate,
		MaxHeartRate:   r.MaxHeartRate,
		Calories:       r.Calories,
		ElevationGainM: r.ElevationGainM,
		Cadence:        r.Cadence,
	}
	if r.StartedAt != "" {
		ts, err := time.Parse(time.RFC3339, r.StartedAt)
		if err != nil {
			return domain.WorkoutInput{}, fmt.Errorf("started_at %q: %w", r.StartedAt, err)
		}
		in.StartedAt = ts.UTC()
	}
	return in, nil
}

// loadWorkouts reads a GPX track or a yaml/json batch. Batches are either a bare
// list or a document with a top-level workouts key.
func loadWorkouts(path string) ([]domain.WorkoutInput, error) {
	if strings.EqualFold(filepath.Ext(path), ".gpx") {
		workout, err := gpx.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []domain.WorkoutInput{workout}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Workouts []workoutRecord `yaml:"workouts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		if listErr := yaml.Unmarshal(data, &doc.Workouts); listErr != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	workouts := make([]domain.WorkoutInput, 0, len(doc.Workouts))
	for i, record := range doc.Workouts {
		in, err := record.input()
		if err != nil {
			return nil, fmt.Errorf("%s: workout %d: %w", path, i+1, err)
		}
		if in.SourceApp == "" {
			in.SourceApp = "file"
		}
		workouts = append(workouts, in)
	}
	return workouts, nil
}

// scoreWorkout classifies in when it carries no role and scores it for profile.
func scoreWorkout(in domain.WorkoutInput, profile ranking.Profile) (ranking.Role, int, error) {
	if err := ranking.ValidateRun(in.DistanceKm, in.DurationSec); err != nil {
		return "", 0, err
	}
	role := in.Role
	if role == "" {
		role = ranking.ClassifyRole(in.DistanceKm, ranking.Pace(in.DurationSec, in.DistanceKm))
	} else if !role.Valid() {
		return "", 0, fmt.Errorf("unknown role %q", role)
	}
	run := ranking.RunInput{
		Role:           role,
		DistanceKm:     in.DistanceKm,
		DurationSec:    in.DurationSec,
		AvgHeartRate:   in.AvgHeartRate,
		MaxHeartRate:   in.MaxHeartRate,
		ElevationGainM: in.ElevationGainM,
	}
	return role, ranking.CalculateLP(run, profile), nil
}

// formatPace renders min/km as m:ss.
func formatPace(pace float64) string {
	total := int(pace*60 + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
