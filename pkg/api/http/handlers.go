package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aescanero/launchorch/internal/application/orchestrator"
	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LaunchRequest is the optional body of a launch request
type LaunchRequest struct {
	ValidateOnly bool `json:"validate_only"`
}

// LaunchResponse is returned when a run is accepted
type LaunchResponse struct {
	RunID      string          `json:"run_id"`
	Entry      string          `json:"entry"`
	State      domain.RunState `json:"state"`
	AcceptedAt time.Time       `json:"accepted_at"`
}

// EntryResponse is an entry with its last run
type EntryResponse struct {
	domain.LaunchEntry
	LastRun *domain.RunRecord `json:"last_run,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	workers := "ok"
	if s.health != nil && !s.health.IsHealthy() {
		status = http.StatusServiceUnavailable
		workers = "degraded"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":      state,
		"timestamp":   time.Now().UTC(),
		"active_runs": s.orchestrator.ActiveRuns(),
		"checks": gin.H{
			"orchestrator": "ok",
			"workers":      workers,
		},
	})
}

// handleListEntries lists entries with their last run
func (s *Server) handleListEntries(c *gin.Context) {
	entries, err := s.store.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		last, err := s.store.LastRun(c.Request.Context(), e.Name)
		if err != nil {
			s.logger.Warn("failed to read last run", zap.String("entry", e.Name), zap.Error(err))
		}
		resp = append(resp, EntryResponse{LaunchEntry: e, LastRun: last})
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  resp,
		"total": len(resp),
	})
}

// handleGetEntry returns one entry
func (s *Server) handleGetEntry(c *gin.Context) {
	name := c.Param("name")

	entry, err := s.store.Get(c.Request.Context(), name)
	if err != nil {
		s.writeError(c, err)
		return
	}

	last, err := s.store.LastRun(c.Request.Context(), name)
	if err != nil {
		s.logger.Warn("failed to read last run", zap.String("entry", name), zap.Error(err))
	}

	c.JSON(http.StatusOK, EntryResponse{LaunchEntry: *entry, LastRun: last})
}

// handleLaunch starts a run for an entry
func (s *Server) handleLaunch(c *gin.Context) {
	name := c.Param("name")

	var req LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	runID, err := s.orchestrator.Launch(c.Request.Context(), name, orchestrator.LaunchOptions{ValidateOnly: req.ValidateOnly})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, LaunchResponse{
		RunID:      runID,
		Entry:      name,
		State:      domain.RunStateIdle,
		AcceptedAt: time.Now().UTC(),
	})
}

// handleListRuns lists known runs
func (s *Server) handleListRuns(c *gin.Context) {
	runs := s.orchestrator.ListRuns()
	c.JSON(http.StatusOK, gin.H{
		"data":   runs,
		"total":  len(runs),
		"active": s.orchestrator.ActiveRuns(),
	})
}

// handleGetRun returns the status of a run
func (s *Server) handleGetRun(c *gin.Context) {
	status, err := s.orchestrator.Status(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// handleGetResult returns the result of a finished run
func (s *Server) handleGetResult(c *gin.Context) {
	result, err := s.orchestrator.Result(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleCancelRun requests cancellation of a run
func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := s.orchestrator.Cancel(c.Request.Context(), runID); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":       runID,
		"status":       "cancelling",
		"requested_at": time.Now().UTC(),
	})
}

// writeError maps an error to its status code and error code
func (s *Server) writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"

	switch {
	case errors.Is(err, domain.ErrAlreadyRunning):
		status, code = http.StatusConflict, "ALREADY_RUNNING"
	case errors.Is(err, domain.ErrEntryNotFound):
		status, code = http.StatusNotFound, "ENTRY_NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidEntry):
		status, code = http.StatusUnprocessableEntity, "INVALID_ENTRY"
	case errors.Is(err, domain.ErrRunNotFound):
		status, code = http.StatusNotFound, "RUN_NOT_FOUND"
	case errors.Is(err, domain.ErrRunFinished):
		status, code = http.StatusConflict, "RUN_FINISHED"
	case errors.Is(err, orchestrator.ErrRunNotCompleted):
		status, code = http.StatusConflict, "NOT_COMPLETED"
	case errors.Is(err, orchestrator.ErrManagerClosed):
		status, code = http.StatusServiceUnavailable, "SHUTTING_DOWN"
	case errors.Is(err, orchestrator.ErrLaneFull):
		status, code = http.StatusServiceUnavailable, "QUEUE_FULL"
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}
