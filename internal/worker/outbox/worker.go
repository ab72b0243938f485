package outbox

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/corray333/coffeeshop/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/coffeeshop/internal/service/models/outbox"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

type publisher interface {
	Publish(exchange, routingKey string, msg amqp.Publishing) error
}

// Worker republishes order events the audit publisher parked in the outbox.
type Worker struct {
	outboxRepo   ioutboxrepo.IOutboxRepository
	publisher    publisher
	pollInterval time.Duration
	batchSize    int
	baseBackoff  time.Duration
	now          func() time.Time
	stopCh       chan struct{}
}

// NewWorker creates a new outbox worker.
func NewWorker(outboxRepo ioutboxrepo.IOutboxRepository, pub publisher) *Worker {
	pollIntervalSeconds := viper.GetInt("rabbitmq.outbox.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 10
	}

	batchSize := viper.GetInt("rabbitmq.outbox.batch_size")
	if batchSize == 0 {
		batchSize = 100
	}

	retryIntervalSeconds := viper.GetInt("rabbitmq.outbox.retry_interval_seconds")
	if retryIntervalSeconds == 0 {
		retryIntervalSeconds = 30
	}

	return &Worker{
		outboxRepo:   outboxRepo,
		publisher:    pub,
		pollInterval: time.Duration(pollIntervalSeconds) * time.Second,
		batchSize:    batchSize,
		baseBackoff:  time.Duration(retryIntervalSeconds) * time.Second,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// Start polls the outbox until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.republishDue(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// backoff is base * 2^attempts: 60s, 120s, 240s... with the default base.
func (w *Worker) backoff(attempts int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempts))) * w.baseBackoff
}

// republishDue sends one batch of due parked events back to their queue.
func (w *Worker) republishDue(ctx context.Context) {
	events, err := w.outboxRepo.Due(ctx, w.now(), w.batchSize)
	if err != nil {
		slog.Error("Failed to load due order events from outbox", "error", err)

		return
	}

	if len(events) == 0 {
		return
	}

	slog.Info("Republishing parked order events", "count", len(events))

	for _, event := range events {
		if err := w.publish(event); err != nil {
			w.reschedule(ctx, event, err)
			continue
		}

		if err := w.outboxRepo.Release(ctx, event.ID); err != nil {
			// The consumer deduplicates by event id, so a second publish is harmless.
			slog.Error("Failed to release republished order event",
				"event_id", event.EventID,
				"error", err,
			)
			continue
		}

		slog.Info("Order event republished from outbox",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"attempts", event.Attempts+1,
		)
	}
}

func (w *Worker) publish(event outbox.ParkedEvent) error {
	return w.publisher.Publish("", event.Queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Type:         event.EventType,
		Timestamp:    event.ParkedAt,
		Body:         event.Payload,
	})
}

func (w *Worker) reschedule(ctx context.Context, event outbox.ParkedEvent, cause error) {
	event.Attempts++
	next := w.now().Add(w.backoff(event.Attempts))

	if event.Exhausted() {
		slog.Error("Order event exhausted its publish attempts",
			"event_id", event.EventID,
			"attempts", event.Attempts,
			"error", cause,
		)
	} else {
		slog.Warn("Failed to republish order event, will retry",
			"event_id", event.EventID,
			"attempts", event.Attempts,
			"next_attempt_at", next,
			"error", cause,
		)
	}

	if err := w.outboxRepo.Reschedule(ctx, event.ID, event.Attempts, cause.Error(), next); err != nil {
		slog.Error("Failed to reschedule parked order event", "event_id", event.EventID, "error", err)
	}
}
