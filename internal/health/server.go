// Package health exposes the standard gRPC health service for
// orchestrator health checks. The reported status follows database reachability.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported next to the overall "" status.
const ServiceName = "shop-service"

const pingTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	db       Pinger
	interval time.Duration
	serving  bool
}

func NewServer(db Pinger, interval time.Duration) *Server {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	s := &Server{
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		db:       db,
		interval: interval,
	}
	grpc_health_v1.RegisterHealthServer(s.grpc, s.health)
	s.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return s
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("health: failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve reports NOT_SERVING and drains the gRPC server once ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.check(ctx)
	go s.watch(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(lis)
	}()
	log.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server started")

	select {
	case <-ctx.Done():
		s.Shutdown()
		s.grpc.GracefulStop()
		if err := <-errCh; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("health: grpc server stopped: %w", err)
		}
		log.Info().Msg("gRPC health server stopped")
		return nil
	case err := <-errCh:
		return fmt.Errorf("health: grpc server stopped: %w", err)
	}
}

// Shutdown switches every service to NOT_SERVING permanently.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *Server) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err := s.db.Ping(pingCtx)
	switch {
	case err == nil && !s.serving:
		log.Info().Msg("Database reachable, reporting SERVING")
		s.serving = true
		s.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	case err != nil && s.serving:
		log.Warn().Err(err).Msg("Database ping failed, reporting NOT_SERVING")
		s.serving = false
		s.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	case err != nil:
		log.Debug().Err(err).Msg("Database still unreachable")
	}
}

func (s *Server) setStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
