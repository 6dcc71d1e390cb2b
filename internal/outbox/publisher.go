package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/tierrun/internal/events"
)

// Workout topic defaults shared by the publisher and the consumer.
const (
	WorkoutTopic   = "workout_events"
	WorkoutSubject = "workout_events-value"
)

// Publisher writes workout.recorded events straight to Kafka with the same
// framing the dispatcher uses. Workout sources have no outbox table of their own.
type Publisher struct {
	producer messageWriter
	registry schemaRegistrar
	topic    string
	subject  string
}

// NewPublisher constructs a Publisher for the given topic. An empty topic selects WorkoutTopic.
func NewPublisher(producer messageWriter, registry schemaRegistrar, topic string) *Publisher {
	subject := topic + "-value"
	if topic == "" {
		topic, subject = WorkoutTopic, WorkoutSubject
	}
	return &Publisher{producer: producer, registry: registry, topic: topic, subject: subject}
}

// PublishWorkout frames and writes one workout keyed by runner.
func (p *Publisher) PublishWorkout(ctx context.Context, workout events.WorkoutRecorded) error {
	if workout.RunnerID == "" {
		return fmt.Errorf("workout without runner id")
	}
	body, err := json.Marshal(workout)
	if err != nil {
		return err
	}
	schemaID, err := p.registry.EnsureSchema(ctx, p.subject, workoutRecordedSchema)
	if err != nil {
		return fmt.Errorf("ensure workout schema: %w", err)
	}
	return p.producer.WriteMessages(ctx, p.topic, kafka.Message{
		Key:   []byte(workout.RunnerID),
		Value: encodeWireFormat(schemaID, body),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.TypeWorkoutRecorded)},
			{Key: "schema_subject", Value: []byte(p.subject)},
		},
	})
}
