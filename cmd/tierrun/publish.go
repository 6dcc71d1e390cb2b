package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"example.com/tierrun/internal/events"
	"example.com/tierrun/internal/outbox"
)

type publishOptions struct {
	runnerID          string
	brokers           []string
	schemaRegistryURL string
	topic             string
}

func newPublishCmd() *cobra.Command {
	po := publishOptions{}
	cmd := &cobra.Command{
		Use:   "publish FILE...",
		Short: "Publish workouts to Kafka for the tierrun consumer",
		Long: `Publish reads workouts from GPX tracks or yaml/json batches and writes one
workout.recorded event per workout, framed with the schema registry id the
consumer expects.`,
		Example: `  tierrun publish --runner ada --brokers localhost:9092 morning.gpx
  tierrun publish --runner ada history.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if po.runnerID == "" {
				return errors.New("--runner is required")
			}
			producer := outbox.NewKafkaProducer(po.brokers)
			defer producer.Close()
			publisher := outbox.NewPublisher(producer, outbox.NewSchemaRegistryClient(po.schemaRegistryURL), po.topic)

			ctx := cmd.Context()
			published := 0
			for _, path := range args {
				workouts, err := loadWorkouts(path)
				if err != nil {
					return err
				}
				for _, in := range workouts {
					evt := events.WorkoutRecorded{
						RunnerID:       po.runnerID,
						SourceID:       in.SourceID,
						SourceApp:      in.SourceApp,
						Role:           string(in.Role),
						StartedAt:      in.StartedAt,
						DistanceKm:     in.DistanceKm,
						DurationSec:    in.DurationSec,
						AvgHeartRate:   in.AvgHeartRate,
						MaxHeartRate:   in.MaxHeartRate,
						Calories:       in.Calories,
						ElevationGainM: in.ElevationGainM,
						Cadence:        in.Cadence,
					}
					if err := publisher.PublishWorkout(ctx, evt); err != nil {
						return fmt.Errorf("publish %s: %w", path, err)
					}
					published++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d workouts for %s\n", published, po.runnerID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&po.runnerID, "runner", "", "Runner the workouts belong to")
	f.StringSliceVar(&po.brokers, "brokers", []string{"localhost:9092"}, "Kafka brokers")
	f.StringVar(&po.schemaRegistryURL, "schema-registry", "http://localhost:8081", "Schema registry URL")
	f.StringVar(&po.topic, "topic", outbox.WorkoutTopic, "Kafka topic")
	return cmd
}
