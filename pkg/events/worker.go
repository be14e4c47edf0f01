package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rankforge/rankforge/internal/telemetry"
)

// HandlerFunc processes one event's decoded payload. Returning an error
// leaves the message un-acknowledged so the broker redelivers it; the
// handler is responsible for tolerating replay (§4.5).
type HandlerFunc func(ctx context.Context, eventID uuid.UUID, payload json.RawMessage) error

// Worker consumes every subject's stream through a durable consumer group,
// processing subjects concurrently (§4.5).
type Worker struct {
	rdb           *redis.Client
	logger        *slog.Logger
	consumerGroup string
	consumerName  string
	handlers      map[string]HandlerFunc
}

// NewWorker creates a Worker. consumerGroup names the durable group shared by
// every process instance; consumerName should be unique per process.
func NewWorker(rdb *redis.Client, logger *slog.Logger, consumerGroup string) *Worker {
	return &Worker{
		rdb:           rdb,
		logger:        logger,
		consumerGroup: consumerGroup,
		consumerName:  "worker-" + uuid.New().String(),
		handlers:      make(map[string]HandlerFunc),
	}
}

// Handle registers the handler for a subject.
func (w *Worker) Handle(subject string, fn HandlerFunc) {
	w.handlers[subject] = fn
}

// Run blocks, consuming every registered subject concurrently until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for subject, handler := range w.handlers {
		wg.Add(1)
		go func(subject string, handler HandlerFunc) {
			defer wg.Done()
			w.consumeLoop(ctx, subject, handler)
		}(subject, handler)
	}
	wg.Wait()
	return ctx.Err()
}

func (w *Worker) consumeLoop(ctx context.Context, subject string, handler HandlerFunc) {
	stream := streamName(subject)

	if err := w.rdb.XGroupCreateMkStream(ctx, stream, w.consumerGroup, "$").Err(); err != nil &&
		!strings.Contains(err.Error(), "BUSYGROUP") {
		w.logger.Error("creating consumer group", "subject", subject, "error", err)
		return
	}

	claimTicker := time.NewTicker(30 * time.Second)
	defer claimTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-claimTicker.C:
			w.reclaimStale(ctx, subject, stream, handler)
		default:
		}

		res, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.consumerGroup,
			Consumer: w.consumerName,
			Streams:  []string{stream, ">"},
			Count:    50,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Error("reading event stream", "subject", subject, "error", err)
			continue
		}

		for _, s := range res {
			for _, msg := range s.Messages {
				w.process(ctx, subject, stream, msg, handler)
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, subject, stream string, msg redis.XMessage, handler HandlerFunc) {
	eventIDStr, _ := msg.Values["id"].(string)
	eventID, err := uuid.Parse(eventIDStr)
	if err != nil {
		w.logger.Error("event with invalid id, acking to drop it", "subject", subject, "raw_id", eventIDStr)
		w.rdb.XAck(ctx, stream, w.consumerGroup, msg.ID)
		return
	}

	payloadStr, _ := msg.Values["payload"].(string)

	if err := handler(ctx, eventID, json.RawMessage(payloadStr)); err != nil {
		w.logger.Error("handling event", "subject", subject, "event_id", eventID, "error", err)
		telemetry.EventsProcessedTotal.WithLabelValues(subject, "error").Inc()
		return
	}

	if err := w.rdb.XAck(ctx, stream, w.consumerGroup, msg.ID).Err(); err != nil {
		w.logger.Error("acking event", "subject", subject, "event_id", eventID, "error", err)
	}
	telemetry.EventsProcessedTotal.WithLabelValues(subject, "ok").Inc()
}

// reclaimStale re-delivers messages that have been pending for longer than a
// minute to this consumer, covering crashed/stuck consumers.
func (w *Worker) reclaimStale(ctx context.Context, subject, stream string, handler HandlerFunc) {
	start := "0-0"
	for {
		msgs, cursor, err := w.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    w.consumerGroup,
			Consumer: w.consumerName,
			MinIdle:  time.Minute,
			Start:    start,
			Count:    50,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				w.logger.Error("reclaiming stale events", "subject", subject, "error", err)
			}
			return
		}

		for _, msg := range msgs {
			w.process(ctx, subject, stream, msg, handler)
		}

		if cursor == "0-0" || len(msgs) == 0 {
			return
		}
		start = cursor
	}
}

// EnsureGroups creates every subject's consumer group ahead of time, useful
// for readiness probes and for the API process (which only publishes).
func EnsureGroups(ctx context.Context, rdb *redis.Client, consumerGroup string, subjects ...string) error {
	for _, subject := range subjects {
		stream := streamName(subject)
		if err := rdb.XGroupCreateMkStream(ctx, stream, consumerGroup, "$").Err(); err != nil &&
			!strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("creating group for %s: %w", subject, err)
		}
	}
	return nil
}
