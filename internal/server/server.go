// Package server runs the contract HTTP API next to a gRPC health endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/gezibash/arc-contract/internal/observability"
)

// HealthService is the gRPC health service name reported by the server.
const HealthService = "arc.contract.v1.ContractService"

// Config holds listener settings.
type Config struct {
	HTTPAddr         string
	GRPCAddr         string
	RequestTimeout   time.Duration
	EnableReflection bool
}

type Server struct {
	httpServer   *http.Server
	httpListener net.Listener
	grpcServer   *grpc.Server
	grpcListener net.Listener
	health       *health.Server
}

// New binds both listeners. An empty GRPCAddr disables the health endpoint.
func New(cfg Config, handler http.Handler, metrics *observability.Metrics, opts ...grpc.ServerOption) (*Server, error) {
	hl, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		httpListener: hl,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.RequestTimeout,
			WriteTimeout:      cfg.RequestTimeout,
		},
	}
	if cfg.GRPCAddr == "" {
		return s, nil
	}

	gl, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = hl.Close()
		return nil, err
	}

	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(metrics)),
	}
	serverOpts = append(serverOpts, opts...)
	grpcServer := grpc.NewServer(serverOpts...)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	if cfg.EnableReflection {
		reflection.Register(grpcServer)
	}

	s.grpcServer = grpcServer
	s.grpcListener = gl
	s.health = hs
	return s, nil
}

// SetServingStatus updates both the overall and the service health status.
func (s *Server) SetServingStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	if s.health != nil {
		s.health.SetServingStatus("", status)
		s.health.SetServingStatus(HealthService, status)
	}
}

// Serve blocks until both servers stop and returns the first unexpected
// error. Health reports serving once both are accepting.
func (s *Server) Serve() error {
	errCh := make(chan error, 2)
	go func() {
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	running := 1
	if s.grpcServer != nil {
		running++
		go func() { errCh <- s.grpcServer.Serve(s.grpcListener) }()
	}
	s.SetServingStatus(grpc_health_v1.HealthCheckResponse_SERVING)

	var first error
	for range running {
		if err := <-errCh; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Addr returns the HTTP listen address.
func (s *Server) Addr() string {
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the gRPC listen address, or "" when disabled.
func (s *Server) GRPCAddr() string {
	if s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Stop drains both servers, forcing them closed when ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.SetServingStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		slog.Warn("http graceful shutdown failed, closing", "error", err)
		_ = s.httpServer.Close()
	}
	if s.grpcServer == nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("graceful stop timed out, forcing")
		s.grpcServer.Stop()
		<-done
	}
	return err
}
