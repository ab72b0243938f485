package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/coffeeshop/internal/dal/postgres"
	"github.com/corray333/coffeeshop/internal/dal/rabbitmq"
	"github.com/corray333/coffeeshop/internal/otel"
	"github.com/corray333/coffeeshop/internal/service/services/auditsvc"
	"github.com/corray333/coffeeshop/internal/transport/consumer"
)

// AuditConsumerApp stores the order event stream in the audit log table.
type AuditConsumerApp struct {
	consumer       *consumer.Consumer
	rabbitClient   *rabbitmq.Client
	postgresClient *postgres.Client
	otel           *otel.OtelController
}

// MustNewAuditConsumerApp creates the audit consumer application.
func MustNewAuditConsumerApp() *AuditConsumerApp {
	otelController := otel.MustInitOtel()
	rabbitClient := rabbitmq.MustNewClient()
	postgresClient := postgres.MustNewClient()

	auditSvc := auditsvc.MustNewAuditService(
		auditsvc.WithPostgresClient(postgresClient),
	)

	return &AuditConsumerApp{
		consumer:       consumer.NewConsumer(rabbitClient, auditSvc),
		rabbitClient:   rabbitClient,
		postgresClient: postgresClient,
		otel:           otelController,
	}
}

// Run consumes until an interrupt signal arrives.
func (a *AuditConsumerApp) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := a.consumer.Run(ctx); err != nil {
			slog.Error("Consumer error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := a.consumer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Consumer shutdown timeout", "error", err)
	} else {
		slog.Info("Consumer stopped gracefully")
	}
	cancel()

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	}

	a.postgresClient.Close()

	if err := a.otel.Shutdown(shutdownCtx); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
