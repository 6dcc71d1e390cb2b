package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/events"
	"example.com/tierrun/internal/ranking"
)

// Ingester is the slice of domain.Service the workout handler drives.
type Ingester interface {
	IngestRun(ctx context.Context, runnerID string, in domain.WorkoutInput) (*domain.IngestResult, error)
}

// WorkoutHandler ingests workout.recorded events. Other event types on the topic
// are acknowledged without effect.
type WorkoutHandler struct {
	ingester Ingester
	logger   *log.Logger
}

// NewWorkoutHandler constructs a WorkoutHandler.
func NewWorkoutHandler(ingester Ingester, logger *log.Logger) *WorkoutHandler {
	if logger == nil {
		logger = log.New(log.Writer(), "[workouts] ", log.LstdFlags)
	}
	return &WorkoutHandler{ingester: ingester, logger: logger}
}

// Handle decodes the payload and records the run.
func (h *WorkoutHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.TypeWorkoutRecorded {
		return nil
	}

	var evt events.WorkoutRecorded
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return fmt.Errorf("%w: decode workout: %v", ErrUnprocessable, err)
	}
	if strings.TrimSpace(evt.RunnerID) == "" {
		return fmt.Errorf("%w: workout without runner_id", ErrUnprocessable)
	}

	result, err := h.ingester.IngestRun(ctx, evt.RunnerID, workoutInput(evt))
	switch {
	case err == nil:
	case domain.IsRejection(err), errors.Is(err, domain.ErrRunnerNotFound):
		return fmt.Errorf("%w: %v", ErrUnprocessable, err)
	default:
		return err
	}

	if result.Replay {
		h.logger.Printf("workout %s for runner %s already recorded as run %s", evt.SourceID, evt.RunnerID, result.Run.ID)
		return nil
	}
	h.logger.Printf("runner %s earned %d LP (%s) from workout %s", evt.RunnerID, result.Run.LPEarned, result.Run.Role, evt.SourceID)
	return nil
}

func workoutInput(evt events.WorkoutRecorded) domain.WorkoutInput {
	return domain.WorkoutInput{
		SourceID:       evt.SourceID,
		SourceApp:      evt.SourceApp,
		Role:           ranking.Role(evt.Role),
		StartedAt:      evt.StartedAt,
		DistanceKm:     evt.DistanceKm,
		DurationSec:    evt.DurationSec,
		AvgHeartRate:   evt.AvgHeartRate,
		MaxHeartRate:   evt.MaxHeartRate,
		Calories:       evt.Calories,
		ElevationGainM: evt.ElevationGainM,
		Cadence:        evt.Cadence,
	}
}
