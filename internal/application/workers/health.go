package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthMonitor periodically samples worker status
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// HealthStatus is a snapshot of the execution lane
type HealthStatus struct {
	TotalWorkers   int       `json:"total_workers"`
	IdleWorkers    int       `json:"idle_workers"`
	BusyWorkers    int       `json:"busy_workers"`
	StoppedWorkers int       `json:"stopped_workers"`
	QueuedJobs     int       `json:"queued_jobs"`
	Healthy        bool      `json:"healthy"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthMonitor{
		pool:     pool,
		interval: interval,
		logger:   logger,
	}
}

// Start starts the health monitor
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	h.stopCh = make(chan struct{})

	go h.run(h.stopCh)
}

// Stop stops the health monitor
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.stopCh)
}

func (h *HealthMonitor) run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.checkHealth()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			h.checkHealth()
		}
	}
}

// checkHealth records worker status and warns about saturation
func (h *HealthMonitor) checkHealth() {
	status := h.GetStatus()

	h.pool.metrics.RecordWorkerPoolStatus(
		status.IdleWorkers,
		status.BusyWorkers,
		status.StoppedWorkers,
	)

	h.logger.Debug("worker pool health check",
		zap.Int("total", status.TotalWorkers),
		zap.Int("idle", status.IdleWorkers),
		zap.Int("busy", status.BusyWorkers),
		zap.Int("stopped", status.StoppedWorkers),
		zap.Int("queued", status.QueuedJobs))

	if !status.Healthy {
		h.logger.Warn("worker pool is unhealthy",
			zap.Int("stopped", status.StoppedWorkers),
			zap.Int("total", status.TotalWorkers))
	}

	// Queued launches wait in IDLE until a worker frees up
	if status.BusyWorkers == status.TotalWorkers && status.QueuedJobs > 0 {
		h.logger.Warn("all workers are busy, launches are queueing",
			zap.Int("total", status.TotalWorkers),
			zap.Int("queued", status.QueuedJobs))
	}
}

// GetStatus returns the current health status
func (h *HealthMonitor) GetStatus() *HealthStatus {
	var idle, busy, stopped int
	for _, status := range h.pool.GetStatus() {
		switch status {
		case WorkerStatusIdle:
			idle++
		case WorkerStatusBusy:
			busy++
		case WorkerStatusStopped:
			stopped++
		}
	}

	return &HealthStatus{
		TotalWorkers:   h.pool.size,
		IdleWorkers:    idle,
		BusyWorkers:    busy,
		StoppedWorkers: stopped,
		QueuedJobs:     h.pool.QueueDepth(),
		Healthy:        stopped == 0,
		Timestamp:      time.Now(),
	}
}

// IsHealthy returns true if no worker has stopped
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
