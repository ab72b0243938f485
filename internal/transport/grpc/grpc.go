package grpctransport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the health check name orchestrators probe for this process.
const ServiceName = "coffeeshop.OrderService"

// GRPCTransport serves the standard gRPC health protocol.
type GRPCTransport struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
}

// NewGRPCTransport creates a new GRPCTransport listening on server.grpc.port.
func NewGRPCTransport() *GRPCTransport {
	port := viper.GetString("server.grpc.port")
	if port == "" {
		port = "9090"
	}

	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		panic(fmt.Sprintf("failed to listen for gRPC: %v", err))
	}

	return newGRPCTransport(listener)
}

func newGRPCTransport(listener net.Listener) *GRPCTransport {
	return &GRPCTransport{
		server:   newGRPCServer(),
		listener: listener,
		health:   health.NewServer(),
	}
}

// Run starts the gRPC server.
func (g *GRPCTransport) Run() error {
	g.RegisterServices()
	slog.Info("Starting gRPC server", "address", g.listener.Addr().String())

	return g.server.Serve(g.listener)
}

// SetServing flips the reported status of the order service.
func (g *GRPCTransport) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(ServiceName, status)
}

// Shutdown gracefully shuts down the gRPC server.
func (g *GRPCTransport) Shutdown(ctx context.Context) error {
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		g.server.Stop()

		return ctx.Err()
	}
}

// RegisterServices registers the gRPC services.
func (g *GRPCTransport) RegisterServices() {
	healthpb.RegisterHealthServer(g.server, g.health)
	g.SetServing(true)
}

// newGRPCServer builds the server with keepalive settings from
// server.grpc.keepalive.
func newGRPCServer() *grpc.Server {
	const prefix = "server.grpc.keepalive."

	params := keepalive.ServerParameters{
		MaxConnectionIdle:     durationOr(prefix+"max_connection_idle", 15*time.Minute),
		MaxConnectionAge:      durationOr(prefix+"max_connection_age", 30*time.Minute),
		MaxConnectionAgeGrace: durationOr(prefix+"max_connection_age_grace", 5*time.Second),
		Time:                  durationOr(prefix+"time", 5*time.Second),
		Timeout:               durationOr(prefix+"timeout", time.Second),
	}

	policy := keepalive.EnforcementPolicy{
		MinTime:             durationOr(prefix+"min_time", 5*time.Second),
		PermitWithoutStream: viper.GetBool(prefix + "permit_without_stream"),
	}

	return grpc.NewServer(
		grpc.KeepaliveParams(params),
		grpc.KeepaliveEnforcementPolicy(policy),
	)
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if d := viper.GetDuration(key); d > 0 {
		return d
	}

	return fallback
}
