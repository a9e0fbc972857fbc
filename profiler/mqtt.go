package profiler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/absmach/profiler/pkg/mqtt"
)

const (
	dumpTopic          = "/control/profiler/dump"
	healthTopic        = "/control/profiler/health"
	healthResultsTopic = "/control/profiler/health/results"
)

// Subscribe listens for remote control requests on the channel.
func Subscribe(ctx context.Context, baseTopic string, pubsub mqtt.PubSub, svc Service, logger *slog.Logger) error {
	if err := pubsub.Subscribe(ctx, baseTopic+"/control/profiler/#", Handle(ctx, baseTopic, pubsub, svc, logger)); err != nil {
		return fmt.Errorf("failed to subscribe to control topic: %w", err)
	}

	return nil
}

func Handle(ctx context.Context, baseTopic string, pubsub mqtt.PubSub, svc Service, logger *slog.Logger) mqtt.Handler {
	return func(topic string, _ map[string]any) error {
		switch topic {
		case baseTopic + dumpTopic:
			snap, err := svc.Dump(ctx)
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "remote dump queued", slog.Duration("timestamp", snap.Timestamp))
		case baseTopic + healthTopic:
			report, err := svc.Health(ctx)
			if err != nil {
				return err
			}

			return pubsub.Publish(ctx, baseTopic+healthResultsTopic, report)
		}

		return nil
	}
}
