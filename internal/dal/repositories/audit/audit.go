package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/coffeeshop/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/coffeeshop/internal/dal/rabbitmq"
	"github.com/corray333/coffeeshop/internal/service/models/auditlog"
	"github.com/corray333/coffeeshop/internal/service/models/outbox"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"
)

const contentTypeJSON = "application/json"

type publisher interface {
	Publish(exchange, routingKey string, msg amqp.Publishing) error
}

// AuditRabbitMQRepository publishes order events to the audit queue. Events that
// cannot be published are parked in the outbox for the retry worker.
type AuditRabbitMQRepository struct {
	publisher  publisher
	outbox     ioutboxrepo.IOutboxRepository
	queue      string
	maxRetries int
	now        func() time.Time
}

func NewAuditRabbitMQRepository(
	client *rabbitmq.Client,
	outboxRepo ioutboxrepo.IOutboxRepository,
) *AuditRabbitMQRepository {
	name := viper.GetString("rabbitmq.audit_queue")
	if name == "" {
		name = "coffeeshop.order.events"
	}

	queue, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    name,
		Durable: true,
	})
	if err != nil {
		panic(err)
	}

	return newAuditRepository(client, outboxRepo, queue.Name)
}

func newAuditRepository(pub publisher, outboxRepo ioutboxrepo.IOutboxRepository, queue string) *AuditRabbitMQRepository {
	maxRetries := viper.GetInt("rabbitmq.outbox.max_retries")
	if maxRetries == 0 {
		maxRetries = 5
	}

	return &AuditRabbitMQRepository{
		publisher:  pub,
		outbox:     outboxRepo,
		queue:      queue,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// LogOrderEvents publishes the events concurrently. The returned error is set
// only when an event could neither be published nor parked in the outbox.
func (r *AuditRabbitMQRepository) LogOrderEvents(ctx context.Context, events []auditlog.OrderEvent) error {
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	g, ctx := errgroup.WithContext(auditCtx)
	g.SetLimit(3)

	for _, event := range events {
		g.Go(func() error {
			payload, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("failed to marshal order event: %w", err)
			}

			err = r.publisher.Publish("", r.queue, amqp.Publishing{
				ContentType:  contentTypeJSON,
				DeliveryMode: amqp.Persistent,
				MessageId:    event.ID,
				Timestamp:    event.OccurredAt,
				Type:         string(event.Type),
				Body:         payload,
			})
			if err == nil {
				return nil
			}

			slog.Warn("Failed to publish order event, storing in outbox",
				"event_id", event.ID,
				"order_id", event.OrderID,
				"error", err,
			)

			return r.park(ctx, event, payload, err)
		})
	}

	return g.Wait()
}

func (r *AuditRabbitMQRepository) park(ctx context.Context, event auditlog.OrderEvent, payload []byte, cause error) error {
	now := r.now()
	parked := outbox.ParkedEvent{
		EventID:       event.ID,
		EventType:     string(event.Type),
		Queue:         r.queue,
		Payload:       payload,
		MaxAttempts:   r.maxRetries,
		LastError:     cause.Error(),
		ParkedAt:      now,
		NextAttemptAt: now,
	}

	if err := r.outbox.Park(ctx, parked); err != nil {
		return fmt.Errorf("failed to store order event in outbox: %w", err)
	}

	return nil
}
