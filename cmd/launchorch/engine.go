package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/aescanero/launchorch/internal/application/activation"
	"github.com/aescanero/launchorch/internal/application/enforcer"
	"github.com/aescanero/launchorch/internal/application/orchestrator"
	"github.com/aescanero/launchorch/internal/application/resolver"
	"github.com/aescanero/launchorch/internal/application/validation"
	"github.com/aescanero/launchorch/internal/application/workers"
	"github.com/aescanero/launchorch/internal/config"
	eventsmemory "github.com/aescanero/launchorch/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/launchorch/pkg/adapters/events/redis"
	prommetrics "github.com/aescanero/launchorch/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/launchorch/pkg/adapters/platform"
	"github.com/aescanero/launchorch/pkg/adapters/platform/simulated"
	storagefile "github.com/aescanero/launchorch/pkg/adapters/storage/file"
	storagememory "github.com/aescanero/launchorch/pkg/adapters/storage/memory"
	storageredis "github.com/aescanero/launchorch/pkg/adapters/storage/redis"
	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/aescanero/launchorch/pkg/ports"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// simulatedStartDelay is how long a simulated game takes to show up
const simulatedStartDelay = time.Second

// engine is the wired orchestrator with everything it depends on
type engine struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	store    ports.EntryStore
	eventBus ports.EventBus
	pool     *workers.Pool
	manager  *orchestrator.Manager
	redis    *goredis.Client
}

// newEngine builds the adapters selected by cfg and starts the worker pool
func newEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*engine, error) {
	clock := clockwork.NewRealClock()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := prommetrics.NewCollector(registry)

	e := &engine{cfg: cfg, logger: logger, registry: registry}

	if cfg.UsesRedis() {
		e.redis = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := e.redis.Ping(ctx).Err(); err != nil {
			_ = e.redis.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	store, err := e.newStore()
	if err != nil {
		e.closeRedis()
		return nil, err
	}
	e.store = store

	switch cfg.Events.Backend {
	case config.BackendRedis:
		e.eventBus = eventsredis.NewStreamsEventBus(e.redis, cfg.Events.StreamPrefix, cfg.Events.StreamMaxLen, logger)
	default:
		e.eventBus = eventsmemory.NewInMemoryEventBusWithBuffer(cfg.Events.BufferSize)
	}

	plat, err := e.newPlatform(ctx, clock)
	if err != nil {
		_ = e.eventBus.Close()
		e.closeRedis()
		return nil, err
	}

	e.pool = workers.NewPool(cfg.Workers.PoolSize, cfg.Workers.QueueSize, metrics, logger, cfg.Workers.HealthCheckInterval)
	if err := e.pool.Start(); err != nil {
		_ = e.eventBus.Close()
		e.closeRedis()
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	stages := orchestrator.Stages{
		Validation: validation.NewWatcher(plat.URIs, plat.Titles, clock, validation.Config{
			Scheme:          cfg.Validation.Scheme,
			PollInterval:    cfg.Validation.PollInterval,
			QuietPeriod:     cfg.Validation.QuietPeriod,
			FallbackCeiling: cfg.Validation.FallbackCeiling,
			Keywords:        cfg.Validation.Keywords,
		}, logger.Named("validation")),
		Activation: activation.NewGateway(plat.Activators, cfg.Activation.AttemptTimeout, clock, metrics, logger.Named("activation")),
		Resolution: resolver.NewResolver(plat.Processes, clock, resolver.Config{
			PollInterval: cfg.Resolver.PollInterval,
			IgnoreImages: cfg.Resolver.IgnoreImages,
		}, logger.Named("resolver")),
		Enforcement: enforcer.NewEnforcer(plat.Attributes, plat.System, clock, metrics, logger.Named("enforcer")),
	}

	e.manager = orchestrator.NewManager(
		store,
		e.eventBus,
		metrics,
		orchestrator.NewValidator(plat.System),
		stages,
		e.pool,
		clock,
		logger,
		cfg.Timeouts.RunRetention,
	)

	return e, nil
}

func (e *engine) newStore() (ports.EntryStore, error) {
	switch e.cfg.Store.Backend {
	case config.BackendRedis:
		return storageredis.NewEntryStore(e.redis, e.cfg.Store.KeyPrefix, e.cfg.Store.RunTTL, e.logger), nil
	case config.BackendMemory:
		return storagememory.NewInMemoryEntryStore(), nil
	default:
		store, err := storagefile.NewEntryStore(e.cfg.Store.EntriesFile, e.cfg.Store.RunsFile, e.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open entry store: %w", err)
		}
		return store, nil
	}
}

// newPlatform returns the Windows platform, or a simulated host on which
// every stored entry is installed
func (e *engine) newPlatform(ctx context.Context, clock clockwork.Clock) (*platform.Platform, error) {
	if !e.cfg.Simulate {
		plat, err := platform.Native(e.cfg.Validation.ClientPrefix)
		if err != nil {
			return nil, fmt.Errorf("%w (set LAUNCHORCH_SIMULATE=true to use a simulated host)", err)
		}
		return plat, nil
	}

	host := simulated.NewHost(clock, runtime.NumCPU())
	entries, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	for _, entry := range entries {
		image := entry.TargetExecutable
		if image == "" {
			image = domain.NormalizeImageToken(entry.Name) + ".exe"
		}
		host.RegisterApp(entry.Identifier, simulated.App{Image: image, StartDelay: simulatedStartDelay})
	}
	host.SetValidationScript(
		simulated.TitleStep{After: 0, Title: "Steam - Validating"},
		simulated.TitleStep{After: 2 * e.cfg.Validation.PollInterval, Title: ""},
	)

	e.logger.Warn("using simulated host", zap.Int("entries", len(entries)))
	return platform.Simulated(host), nil
}

// shutdown stops the engine in dependency order
func (e *engine) shutdown(ctx context.Context) {
	if err := e.manager.Shutdown(ctx); err != nil {
		e.logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := e.pool.Shutdown(ctx); err != nil {
		e.logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := e.eventBus.Close(); err != nil {
		e.logger.Error("event bus close error", zap.Error(err))
	}

	e.closeRedis()
}

func (e *engine) closeRedis() {
	if e.redis == nil {
		return
	}
	if err := e.redis.Close(); err != nil {
		e.logger.Error("Redis close error", zap.Error(err))
	}
}
