package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/launchorch/internal/application/orchestrator"
	"github.com/aescanero/launchorch/pkg/api/origin"
	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/aescanero/launchorch/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// RunLookup returns the status of a run
type RunLookup interface {
	Status(runID string) (*orchestrator.RunStatus, error)
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus   ports.EventBus
	runs       RunLookup
	upgrader   websocket.Upgrader
	bufferSize int
	logger     *zap.Logger
}

// NewHandler creates a new WebSocket handler. Browser connections are
// accepted from origins allowed by origins, or from the same origin when nil.
func NewHandler(eventBus ports.EventBus, runs RunLookup, origins *origin.Policy, logger *zap.Logger) *Handler {
	h := &Handler{
		eventBus: eventBus,
		runs:     runs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		bufferSize: 64,
		logger:     logger,
	}
	if origins != nil {
		h.upgrader.CheckOrigin = origins.Allowed
	}
	return h
}

// HandleEventStream streams the status events of every run
func (h *Handler) HandleEventStream(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, err := h.subscribe(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"code": "UNAVAILABLE", "message": err.Error()}})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("stream", "events"),
		zap.String("client", c.ClientIP()))

	h.pump(ctx, cancel, conn, events, func(domain.StatusEvent) (bool, bool) { return true, false })
}

// HandleRunStream streams the status events of one run and closes once the
// run reaches a terminal state
func (h *Handler) HandleRunStream(c *gin.Context) {
	runID := c.Param("id")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before reading the status so a run finishing in between
	// still delivers its terminal event
	events, err := h.subscribe(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"code": "UNAVAILABLE", "message": err.Error()}})
		return
	}

	status, err := h.runs.Status(runID)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, domain.ErrRunNotFound) {
			code = http.StatusNotFound
		}
		c.JSON(code, gin.H{"error": gin.H{"code": "RUN_NOT_FOUND", "message": err.Error()}})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("run_id", runID),
		zap.String("client", c.ClientIP()))

	// A finished run only gets its terminal state
	if status.State.IsTerminal() {
		_ = h.write(conn, terminalEvent(status))
		h.closeNormal(conn)
		return
	}

	h.pump(ctx, cancel, conn, events, func(e domain.StatusEvent) (bool, bool) {
		if e.RunID != runID {
			return false, false
		}
		return true, e.Type == domain.EventStateChanged && e.State.IsTerminal()
	})
}

func terminalEvent(status *orchestrator.RunStatus) domain.StatusEvent {
	event := domain.StatusEvent{
		RunID:     status.RunID,
		EntryName: status.EntryName,
		Type:      domain.EventStateChanged,
		State:     status.State,
		Timestamp: time.Now(),
	}
	if status.Result != nil {
		event.Timestamp = status.Result.FinishedAt
		if status.Result.Error != nil {
			event.Detail = status.Result.Error.Message
			event.Kind = status.Result.Error.Kind
		}
	}
	return event
}

// subscribe buffers launch events into a channel until ctx ends. Events
// that do not fit are dropped.
func (h *Handler) subscribe(ctx context.Context) (<-chan domain.StatusEvent, error) {
	events := make(chan domain.StatusEvent, h.bufferSize)
	handler := func(ctx context.Context, event domain.StatusEvent) error {
		select {
		case events <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("run_id", event.RunID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}

	if err := h.eventBus.Subscribe(ctx, ports.TopicLaunchEvents, handler); err != nil {
		h.logger.Error("failed to subscribe to events",
			zap.String("topic", ports.TopicLaunchEvents),
			zap.Error(err))
		return nil, err
	}
	return events, nil
}

// pump forwards events accepted by filter until the client goes away or
// filter reports the last event
func (h *Handler) pump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, events <-chan domain.StatusEvent, filter func(domain.StatusEvent) (send, last bool)) {
	// Reading handles control frames and notices the client closing
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			send, last := filter(event)
			if !send {
				continue
			}
			if err := h.write(conn, event); err != nil {
				h.logger.Error("failed to write message", zap.Error(err))
				return
			}
			if last {
				h.closeNormal(conn)
				return
			}
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, event domain.StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Handler) closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
