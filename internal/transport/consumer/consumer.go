package consumer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/corray333/coffeeshop/internal/dal/rabbitmq"
	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/auditlog"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

// service represents the service layer interface.
type service interface {
	ProcessOrderEvent(ctx context.Context, payload []byte) (*auditlog.OrderEvent, error)
}

// broker is the part of the RabbitMQ client the consumer needs.
type broker interface {
	DeclareQueue(cfg rabbitmq.DeclareQueueConfig) (amqp.Queue, error)
	Qos(prefetch int) error
	Consume(cfg rabbitmq.ConsumeConfig) (<-chan amqp.Delivery, error)
}

// Consumer reads order events from the audit queue and hands them to the service.
type Consumer struct {
	client      broker
	service     service
	queue       string
	consumerTag string
	prefetch    int

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewConsumer creates a new Consumer and declares the audit queue.
func NewConsumer(client broker, service service) *Consumer {
	queueName := viper.GetString("rabbitmq.audit_queue")
	if queueName == "" {
		queueName = "coffeeshop.order.events"
	}

	queue, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    queueName,
		Durable: true,
	})
	if err != nil {
		panic(err)
	}

	consumerTag := viper.GetString("rabbitmq.consumer.tag")
	if consumerTag == "" {
		consumerTag = "coffeeshop-audit"
	}
	prefetch := viper.GetInt("rabbitmq.consumer.prefetch")
	if prefetch <= 0 {
		prefetch = 50
	}

	return &Consumer{
		client:      client,
		service:     service,
		queue:       queue.Name,
		consumerTag: consumerTag,
		prefetch:    prefetch,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Run consumes deliveries until Shutdown is called or the channel closes.
// At most prefetch deliveries are processed concurrently.
func (c *Consumer) Run(ctx context.Context) error {
	defer close(c.done)

	if err := c.client.Qos(c.prefetch); err != nil {
		return err
	}

	msgs, err := c.client.Consume(rabbitmq.ConsumeConfig{
		Queue:    c.queue,
		Consumer: c.consumerTag,
	})
	if err != nil {
		return err
	}

	slog.Info("Consumer started", "queue", c.queue, "consumer_tag", c.consumerTag)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.prefetch)

loop:
	for {
		select {
		case <-c.stop:
			slog.Info("Stopping consumer")

			break loop
		case <-ctx.Done():
			break loop
		case msg, ok := <-msgs:
			if !ok {
				slog.Info("Message channel closed")

				break loop
			}

			g.Go(func() error {
				c.processMessage(gctx, msg)

				return nil
			})
		}
	}

	return g.Wait()
}

// processMessage settles one delivery. Events that can never be stored are
// dropped, storage failures are requeued.
func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	ctx, span := otel.Tracer("consumer").Start(ctx, "Consumer.processMessage")
	defer span.End()

	event, err := c.service.ProcessOrderEvent(ctx, msg.Body)
	if err != nil {
		requeue := apperr.KindOf(err) != apperr.KindValidation

		slog.Error("Failed to process order event",
			"error", err,
			"delivery_tag", msg.DeliveryTag,
			"requeue", requeue,
		)

		if err := msg.Nack(false, requeue); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("Failed to ack message", "error", err, "event_id", event.ID)

		return
	}

	slog.Debug("Message processed", "event_id", event.ID, "order_id", event.OrderID)
}

// Shutdown stops taking new deliveries and waits for in-flight ones.
func (c *Consumer) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer")
	c.stopOnce.Do(func() { close(c.stop) })

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
