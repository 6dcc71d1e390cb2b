package consumer

import (
	"context"
	"encoding/json"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/events"
	"example.com/tierrun/internal/persistence/memory"
	"example.com/tierrun/internal/ranking"
)

func newWorkoutHandler(t *testing.T) (*WorkoutHandler, *domain.Service, string) {
	t.Helper()
	now := time.Date(2025, time.November, 5, 18, 0, 0, 0, time.UTC)
	svc := domain.NewService(memory.NewRepository(),
		domain.WithClock(func() time.Time { return now }),
		domain.WithLogger(log.New(testWriter{t}, "", 0)),
	)
	runner, _, err := svc.RegisterRunner(context.Background(), domain.RegisterRunnerInput{
		Name:    "Ada",
		Profile: ranking.Profile{Age: 30, Sex: ranking.SexMale, Experience: ranking.Advanced},
	})
	require.NoError(t, err)
	return NewWorkoutHandler(svc, log.New(testWriter{t}, "", 0)), svc, runner.ID
}

func workoutEventMessage(t *testing.T, evt events.WorkoutRecorded) Message {
	t.Helper()
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	return Message{Topic: "workout_events", EventType: events.TypeWorkoutRecorded, Key: evt.RunnerID, Payload: payload}
}

func TestWorkoutHandlerIngestsRuns(t *testing.T) {
	handler, svc, runnerID := newWorkoutHandler(t)
	ctx := context.Background()

	msg := workoutEventMessage(t, events.WorkoutRecorded{
		RunnerID:     runnerID,
		SourceID:     "hk-1",
		StartedAt:    time.Date(2025, time.November, 5, 7, 0, 0, 0, time.UTC),
		DistanceKm:   10,
		DurationSec:  3600,
		AvgHeartRate: 140,
		MaxHeartRate: 170,
	})
	require.NoError(t, handler.Handle(ctx, msg))
	require.NoError(t, handler.Handle(ctx, msg), "redelivery is a replay")

	tier, err := svc.GetTier(ctx, runnerID, ranking.RoleMarathoner)
	require.NoError(t, err)
	require.Equal(t, 38, tier.State.LP)

	runs, _, err := svc.ListRuns(ctx, domain.RunFilter{RunnerID: runnerID}, nil, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestWorkoutHandlerFlagsUnprocessableWorkouts(t *testing.T) {
	handler, _, runnerID := newWorkoutHandler(t)
	ctx := context.Background()

	tooShort := workoutEventMessage(t, events.WorkoutRecorded{RunnerID: runnerID, SourceID: "hk-2", DistanceKm: 0.1, DurationSec: 60})
	require.ErrorIs(t, handler.Handle(ctx, tooShort), ErrUnprocessable)

	badRole := workoutEventMessage(t, events.WorkoutRecorded{RunnerID: runnerID, SourceID: "hk-3", Role: "walker", DistanceKm: 5, DurationSec: 1800})
	require.ErrorIs(t, handler.Handle(ctx, badRole), ErrUnprocessable)

	ghost := workoutEventMessage(t, events.WorkoutRecorded{RunnerID: "ghost", SourceID: "hk-4", DistanceKm: 5, DurationSec: 1800})
	require.ErrorIs(t, handler.Handle(ctx, ghost), ErrUnprocessable)

	garbled := Message{EventType: events.TypeWorkoutRecorded, Payload: json.RawMessage(`{"runner_id":`)}
	require.ErrorIs(t, handler.Handle(ctx, garbled), ErrUnprocessable)

	anonymous := workoutEventMessage(t, events.WorkoutRecorded{SourceID: "hk-5", DistanceKm: 5, DurationSec: 1800})
	require.ErrorIs(t, handler.Handle(ctx, anonymous), ErrUnprocessable)
}

func TestWorkoutHandlerIgnoresOtherEvents(t *testing.T) {
	handler, _, _ := newWorkoutHandler(t)
	require.NoError(t, handler.Handle(context.Background(), Message{EventType: events.TypeRunScored, Payload: json.RawMessage(`{}`)}))
}
