package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/coffeeshop/internal/dal/postgres"
	"github.com/corray333/coffeeshop/internal/dal/rabbitmq"
	"github.com/corray333/coffeeshop/internal/dal/repositories/audit"
	outboxrepo "github.com/corray333/coffeeshop/internal/dal/repositories/outbox/postgres"
	"github.com/corray333/coffeeshop/internal/otel"
	"github.com/corray333/coffeeshop/internal/realtime/registry"
	"github.com/corray333/coffeeshop/internal/service/models/currency"
	"github.com/corray333/coffeeshop/internal/service/services/authsvc"
	"github.com/corray333/coffeeshop/internal/service/services/ordersvc"
	grpctransport "github.com/corray333/coffeeshop/internal/transport/grpc"
	httptransport "github.com/corray333/coffeeshop/internal/transport/http"
	"github.com/corray333/coffeeshop/internal/transport/ws"
	"github.com/corray333/coffeeshop/internal/worker/outbox"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	orderSvc       *ordersvc.OrderService
	authSvc        *authsvc.AuthService
	gateway        *ws.Gateway
	transport      *httptransport.HTTPTransport
	grpcTransport  *grpctransport.GRPCTransport
	outboxWorker   *outbox.Worker
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	otel           *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()

	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()

	outboxRepo := outboxrepo.NewOutboxRepository(postgresClient.Pool())
	auditRepo := audit.NewAuditRabbitMQRepository(rabbitClient, outboxRepo)
	outboxWorker := outbox.NewWorker(outboxRepo, rabbitClient)

	authSvc := authsvc.MustNewAuthService(
		authsvc.WithPostgresClient(postgresClient),
	)

	// The registry lives as long as the process and is shared by every connection.
	gateway := ws.NewGateway(registry.New(), authSvc)

	cur := currency.CurrencyRUB
	if code := viper.GetString("order.currency"); code != "" {
		parsed, err := currency.ParseCurrency(code)
		if err != nil {
			panic("invalid order.currency: " + code)
		}
		cur = parsed
	}

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithNotifier(gateway),
		ordersvc.WithAuditor(auditRepo),
		ordersvc.WithCurrency(cur),
	)

	transport := httptransport.NewHTTPTransport(orderSvc, authSvc, gateway)
	transport.RegisterRoutes()

	return &App{
		orderSvc:       orderSvc,
		authSvc:        authSvc,
		gateway:        gateway,
		transport:      transport,
		grpcTransport:  grpctransport.NewGRPCTransport(),
		outboxWorker:   outboxWorker,
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		otel:           otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	go a.outboxWorker.Start(workerCtx)

	go func() {
		if err := a.transport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		if err := a.grpcTransport.Run(); err != nil {
			slog.Error("gRPC server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.grpcTransport.SetServing(false)

	// Websocket connections are hijacked and not tracked by http.Server.Shutdown.
	a.gateway.Shutdown()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.grpcTransport.Shutdown(ctx); err != nil {
		slog.Error("gRPC server shutdown error", "error", err)
	}

	a.outboxWorker.Stop()

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otel.Shutdown(ctx); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
