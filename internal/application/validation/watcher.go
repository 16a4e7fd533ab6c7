package validation

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/aescanero/launchorch/pkg/ports"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultKeywords are the window-title fragments shown while the client verifies files
var DefaultKeywords = []string{"Validating", "Verifying", "Updating"}

// Config holds watcher timing and matching settings
type Config struct {
	Scheme          string
	PollInterval    time.Duration
	QuietPeriod     time.Duration
	FallbackCeiling time.Duration
	Keywords        []string
}

// DefaultConfig returns the watcher defaults
func DefaultConfig() Config {
	return Config{
		Scheme:          "steam",
		PollInterval:    500 * time.Millisecond,
		QuietPeriod:     5 * time.Second,
		FallbackCeiling: 60 * time.Second,
		Keywords:        DefaultKeywords,
	}
}

// Observer receives the session every time its watch state changes
type Observer func(session *domain.ValidationSession)

// Watcher drives validation sessions
type Watcher struct {
	dispatcher ports.URIDispatcher
	titles     ports.WindowTitleSource
	clock      clockwork.Clock
	cfg        Config
	logger     *zap.Logger
}

// NewWatcher creates a new validation watcher
func NewWatcher(
	dispatcher ports.URIDispatcher,
	titles ports.WindowTitleSource,
	clock clockwork.Clock,
	cfg Config,
	logger *zap.Logger,
) *Watcher {
	defaults := DefaultConfig()
	if cfg.Scheme == "" {
		cfg.Scheme = defaults.Scheme
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = defaults.QuietPeriod
	}
	if cfg.FallbackCeiling <= 0 {
		cfg.FallbackCeiling = defaults.FallbackCeiling
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = defaults.Keywords
	}

	return &Watcher{
		dispatcher: dispatcher,
		titles:     titles,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Config returns the effective configuration
func (w *Watcher) Config() Config {
	return w.cfg
}

// TriggerURI returns the URI that starts validation of a title
func (w *Watcher) TriggerURI(validationID string) string {
	return fmt.Sprintf("%s://validate/%s", w.cfg.Scheme, url.PathEscape(validationID))
}

// Watch triggers validation and blocks until the session reaches DONE.
// It returns within FallbackCeiling plus one poll interval unless ctx ends
// first, in which case the partial session and ctx.Err() are returned.
func (w *Watcher) Watch(ctx context.Context, validationID string, observe Observer) (*domain.ValidationSession, error) {
	if observe == nil {
		observe = func(*domain.ValidationSession) {}
	}

	session := domain.NewValidationSession(
		validationID,
		w.clock.Now(),
		w.cfg.Keywords,
		w.cfg.QuietPeriod,
		w.cfg.FallbackCeiling,
	)
	observe(session)

	uri := w.TriggerURI(validationID)
	w.logger.Info("triggering validation",
		zap.String("validation_id", validationID),
		zap.String("uri", uri))

	if err := w.dispatcher.OpenURI(ctx, uri); err != nil {
		if ctx.Err() != nil {
			return session, ctx.Err()
		}
		// Nothing will validate, waiting out the ceiling would only delay the launch
		w.logger.Warn("validation trigger failed",
			zap.String("validation_id", validationID),
			zap.Error(err))
		session.Abort(w.clock.Now(), domain.FallbackTriggerFailed)
		observe(session)
		return session, nil
	}

	ticker := w.clock.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("validation watch cancelled",
				zap.String("validation_id", validationID),
				zap.String("state", string(session.State)))
			return session, ctx.Err()
		case <-ticker.Chan():
		}

		// Sample time before titles so the observation is stamped with the tick
		now := w.clock.Now()
		titles, err := w.titles.Titles(ctx)
		if err != nil {
			w.logger.Debug("window title sampling failed",
				zap.String("validation_id", validationID),
				zap.Error(err))
			titles = nil
		}

		previous := session.State
		state := session.Observe(now, titles)
		if state == previous {
			continue
		}

		w.logger.Debug("validation state changed",
			zap.String("validation_id", validationID),
			zap.String("from", string(previous)),
			zap.String("to", string(state)))
		observe(session)

		if state == domain.WatchDone {
			w.logger.Info("validation finished",
				zap.String("validation_id", validationID),
				zap.Bool("fallback", session.Fallback),
				zap.String("reason", session.Reason),
				zap.Duration("elapsed", session.DoneAt.Sub(session.StartedAt)))
			return session, nil
		}
	}
}
