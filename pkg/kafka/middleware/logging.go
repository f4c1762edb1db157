package kafka_middleware

import (
	"context"
	"time"

	"lessonbook/pkg/kafka"
	"lessonbook/pkg/logger"
)

// LoggingProducerMiddleware logs every publish with its outcome and latency.
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"correlation_id", msg.GetCorrelationID(),
			"duration_ms", time.Since(start).Milliseconds(),
		}

		if err != nil {
			log.Warn("Failed to publish Kafka message", append(attrs, "error", err, "transient", kafka.IsTransient(err))...)
			return err
		}

		log.Debug("Published Kafka message", attrs...)
		return nil
	}
}
