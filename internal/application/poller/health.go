package poller

import (
	"sync"
	"time"

	"github.com/aescanero/livepoll/pkg/ports"
	"go.uber.org/zap"
)

// staleAfter is how many poll intervals may pass without a successful poll
// before the session is reported unhealthy
const staleAfter = 3

// HealthMonitor monitors poller health
type HealthMonitor struct {
	poller   *Poller
	interval time.Duration
	metrics  ports.MetricsCollector
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// HealthStatus represents the health status of the poller
type HealthStatus struct {
	State          State     `json:"state"`
	Healthy        bool      `json:"healthy"`
	PollsSucceeded uint64    `json:"polls_succeeded"`
	PollsFailed    uint64    `json:"polls_failed"`
	SinceSuccess   string    `json:"since_success,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(poller *Poller, interval time.Duration, metrics ports.MetricsCollector, logger *zap.Logger) *HealthMonitor {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &HealthMonitor{
		poller:   poller,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Start starts the health monitor. A stopped monitor may be started again.
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
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	stopCh := h.stopCh
	h.mu.Unlock()

	close(stopCh)
}

// run is the main health monitoring loop
func (h *HealthMonitor) run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			h.checkHealth()
		}
	}
}

// checkHealth checks poller health and logs status
func (h *HealthMonitor) checkHealth() {
	status := h.GetStatus()

	h.logger.Info("session health check",
		zap.String("state", string(status.State)),
		zap.Uint64("polls_succeeded", status.PollsSucceeded),
		zap.Uint64("polls_failed", status.PollsFailed),
		zap.Bool("healthy", status.Healthy))

	h.metrics.SetSessionHealthy(status.Healthy)

	if !status.Healthy && status.State == StateRunning {
		h.logger.Warn("session poller is unhealthy",
			zap.String("since_success", status.SinceSuccess))
	}
}

// GetStatus returns the current health status. A running poller is healthy
// while its last successful poll, or its connection if none succeeded yet,
// is at most staleAfter intervals old.
func (h *HealthMonitor) GetStatus() *HealthStatus {
	s := h.poller.Status()
	now := h.now()

	status := &HealthStatus{
		State:          s.State,
		PollsSucceeded: s.PollsSucceeded,
		PollsFailed:    s.PollsFailed,
		Timestamp:      now,
	}

	if s.State != StateRunning {
		return status
	}

	last := s.ConnectedAt
	if s.LastSuccessAt != nil {
		last = s.LastSuccessAt
	}
	if last == nil {
		return status
	}

	since := now.Sub(*last)
	status.SinceSuccess = since.Round(time.Millisecond).String()
	status.Healthy = since <= staleAfter*h.poller.cfg.PollInterval

	return status
}

// IsHealthy returns true if the poller is healthy
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
