package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rankforge/rankforge/internal/telemetry"
)

// Publisher appends events to their subject's Redis Stream.
type Publisher struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewPublisher creates a Publisher over the given Redis client.
func NewPublisher(rdb *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{rdb: rdb, logger: logger}
}

// Publish appends one event to subject's stream, blocking the caller. Most
// callers should use PublishAsync instead so a broker hiccup never slows the
// hot path.
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) (uuid.UUID, error) {
	eventID := uuid.New()

	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshaling %s payload: %w", subject, err)
	}

	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName(subject),
		MaxLen: 1_000_000,
		Approx: true,
		Values: map[string]any{
			"id":      eventID.String(),
			"payload": body,
		},
	}).Err()
	if err != nil {
		return uuid.Nil, fmt.Errorf("publishing %s: %w", subject, err)
	}

	telemetry.EventsPublishedTotal.WithLabelValues(subject).Inc()
	return eventID, nil
}

// PublishAsync publishes in a background goroutine with its own deadline,
// independent of the request context, per the design note that broker
// publication must outlive an early client disconnect. Failures are logged,
// never propagated — the sorted set remains the source of truth.
func (p *Publisher) PublishAsync(subject string, payload any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := p.Publish(ctx, subject, payload); err != nil {
			p.logger.Error("publishing event failed", "subject", subject, "error", err)
		}
	}()
}
