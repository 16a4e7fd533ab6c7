package grpc

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the orchestrator
const ServiceName = "launchorch.Orchestrator"

// HealthChecker reports whether the orchestrator can take runs
type HealthChecker interface {
	IsHealthy() bool
}

// Server represents the gRPC API server
type Server struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
	checker  HealthChecker
	interval time.Duration
	logger   *zap.Logger

	serving  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	loopWg   sync.WaitGroup
}

// Config holds gRPC server configuration
type Config struct {
	// Host is the listen address; empty listens on every interface
	Host string
	Port int
	// Checker is polled every CheckInterval; always serving when nil
	Checker       HealthChecker
	CheckInterval time.Duration
	Logger        *zap.Logger
}

// NewServer creates a new gRPC server
func NewServer(cfg *Config) (*Server, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	s := &Server{
		server:   grpcServer,
		listener: listener,
		health:   healthServer,
		checker:  cfg.Checker,
		interval: interval,
		logger:   cfg.Logger,
		serving:  true,
		stopCh:   make(chan struct{}),
	}
	s.updateHealth()

	return s, nil
}

// Addr returns the listening address
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start starts the gRPC server
func (s *Server) Start() error {
	s.logger.Info("starting gRPC server", zap.String("addr", s.Addr()))

	s.loopWg.Add(1)
	go s.healthLoop()

	if err := s.server.Serve(s.listener); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}

	return nil
}

// Shutdown reports NOT_SERVING and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gRPC server")

	s.stopOnce.Do(func() { close(s.stopCh) })
	s.loopWg.Wait()
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("gRPC shutdown: %w", ctx.Err())
	}

	s.logger.Info("gRPC server shut down complete")
	return nil
}

// healthLoop keeps the health service in line with the checker
func (s *Server) healthLoop() {
	defer s.loopWg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.updateHealth()
		}
	}
}

func (s *Server) updateHealth() {
	serving := s.checker == nil || s.checker.IsHealthy()
	if serving != s.serving {
		s.logger.Info("orchestrator health changed", zap.Bool("serving", serving))
		s.serving = serving
	}

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if !serving {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
}
