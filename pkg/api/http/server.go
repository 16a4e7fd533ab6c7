package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aescanero/launchorch/internal/application/orchestrator"
	"github.com/aescanero/launchorch/pkg/api/origin"
	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/aescanero/launchorch/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Orchestrator is the part of the orchestrator manager the API drives
type Orchestrator interface {
	Launch(ctx context.Context, name string, opts orchestrator.LaunchOptions) (string, error)
	Cancel(ctx context.Context, runID string) error
	Status(runID string) (*orchestrator.RunStatus, error)
	Result(runID string) (*domain.LaunchResult, error)
	ListRuns() []orchestrator.RunStatus
	ActiveRuns() int
}

// HealthChecker reports whether the execution lane can take runs
type HealthChecker interface {
	IsHealthy() bool
}

// Server represents the HTTP API server
type Server struct {
	router       *gin.Engine
	server       *http.Server
	orchestrator Orchestrator
	store        ports.EntryStore
	health       HealthChecker
	logger       *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	// Host is the listen address; empty listens on every interface
	Host         string
	Port         int
	Orchestrator Orchestrator
	Store        ports.EntryStore
	// Health is optional
	Health HealthChecker
	// Gatherer serves /metrics; the default registry when nil
	Gatherer prometheus.Gatherer
	// Origins restricts browser callers; same-origin only when nil
	Origins *origin.Policy
	Logger  *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware(cfg.Origins))

	s := &Server{
		router:       router,
		orchestrator: cfg.Orchestrator,
		store:        cfg.Store,
		health:       cfg.Health,
		logger:       cfg.Logger,
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.setupRoutes(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(metrics http.Handler) {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(metrics))

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Entry endpoints
		v1.GET("/entries", s.handleListEntries)
		v1.GET("/entries/:name", s.handleGetEntry)
		v1.POST("/entries/:name/launch", s.handleLaunch)

		// Run endpoints
		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
		v1.GET("/runs/:id/result", s.handleGetResult)
		v1.POST("/runs/:id/cancel", s.handleCancelRun)
	}
}

// StreamHandler serves status event streams over websocket
type StreamHandler interface {
	HandleEventStream(c *gin.Context)
	HandleRunStream(c *gin.Context)
}

// SetupWebSocket adds the websocket stream routes
func (s *Server) SetupWebSocket(handler StreamHandler) {
	s.router.GET("/api/v1/events/ws", handler.HandleEventStream)
	s.router.GET("/api/v1/runs/:id/ws", handler.HandleRunStream)
}

// Handler returns the router for use with httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
