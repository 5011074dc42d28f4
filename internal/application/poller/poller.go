package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/livepoll/pkg/ports"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrStopped is returned by Connect once the poller has been stopped
var ErrStopped = errors.New("poller stopped")

// Config identifies the session to poll and how often
type Config struct {
	SessionID    string
	PollInterval time.Duration
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %s", c.PollInterval)
	}
	return nil
}

// State is the lifecycle stage of a Poller
type State string

const (
	StateUninitialized State = "uninitialized"
	StateRunning       State = "running"
	StateStopped       State = "stopped"
)

// Status is a point-in-time view of a Poller
type Status struct {
	SessionID      string     `json:"session_id"`
	State          State      `json:"state"`
	Continuation   string     `json:"continuation,omitempty"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
	LastPollAt     *time.Time `json:"last_poll_at,omitempty"`
	LastSuccessAt  *time.Time `json:"last_success_at,omitempty"`
	PollsSucceeded uint64     `json:"polls_succeeded"`
	PollsFailed    uint64     `json:"polls_failed"`
}

// Poller resolves one session and polls its chat until stopped
type Poller struct {
	cfg     Config
	client  *Client
	bus     ports.EventBus
	metrics ports.MetricsCollector
	logger  *zap.Logger

	// serializes Connect so concurrent callers never resolve twice
	connectMu sync.Mutex

	mu          sync.RWMutex
	initialized bool
	stopped     bool
	metadata    *Metadata
	cancel      context.CancelFunc
	done        chan struct{}

	continuation   string
	connectedAt    time.Time
	lastPollAt     time.Time
	lastSuccessAt  time.Time
	pollsSucceeded uint64
	pollsFailed    uint64
}

// NewPoller creates a new session poller
func NewPoller(cfg Config, client *Client, bus ports.EventBus, metrics ports.MetricsCollector, logger *zap.Logger) (*Poller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid poller config: %w", err)
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Poller{
		cfg:     cfg,
		client:  client,
		bus:     bus,
		metrics: metrics,
		logger:  logger.With(zap.String("session_id", cfg.SessionID)),
	}, nil
}

// Connect resolves the session metadata and starts the poll loop. Calling it
// while the loop is running does nothing. A failed resolution leaves the
// poller uninitialized so a later call starts over.
func (p *Poller) Connect(ctx context.Context) error {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	p.mu.RLock()
	initialized, stopped := p.initialized, p.stopped
	p.mu.RUnlock()

	if stopped {
		return ErrStopped
	}
	if initialized {
		return nil
	}

	md, err := p.resolve(ctx)
	if err != nil {
		p.metrics.RecordResolution("failed")
		p.logger.Error("session resolution failed", zap.Error(err))
		return err
	}
	p.metrics.RecordResolution("ok")

	// the loop outlives the caller's ctx; only Stop ends it
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.initialized = true
	p.metadata = md
	p.cancel = cancel
	p.done = done
	p.continuation = md.Continuation
	p.connectedAt = time.Now()
	p.mu.Unlock()

	go p.run(loopCtx, *md, done)

	p.logger.Info("session connected",
		zap.String("client_version", md.ClientVersion),
		zap.Duration("poll_interval", p.cfg.PollInterval))

	return nil
}

// Stop signals the poll loop to exit. It is a no-op if the poller never
// connected.
//
// Stop does not wait: a poll already past its last cancellation check may
// still emit one update after Stop returns. Use Shutdown when no emission
// may follow.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return
	}

	p.stopped = true
	p.cancel()
	p.cancel = nil

	p.logger.Info("stopping session poller")
}

// Done returns a channel closed when the poll loop has exited. It is nil if
// the poller never connected.
func (p *Poller) Done() <-chan struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.done
}

// Shutdown stops the poller and waits for the loop to exit
func (p *Poller) Shutdown(ctx context.Context) error {
	p.Stop()

	done := p.Done()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// Metadata returns the resolved session metadata, or nil before Connect
// succeeds
func (p *Poller) Metadata() *Metadata {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil
	}
	md := *p.metadata
	return &md
}

// Status returns the current status of the poller
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := Status{
		SessionID:      p.cfg.SessionID,
		State:          StateUninitialized,
		Continuation:   p.continuation,
		ConnectedAt:    timePtr(p.connectedAt),
		LastPollAt:     timePtr(p.lastPollAt),
		LastSuccessAt:  timePtr(p.lastSuccessAt),
		PollsSucceeded: p.pollsSucceeded,
		PollsFailed:    p.pollsFailed,
	}

	switch {
	case p.stopped:
		status.State = StateStopped
	case p.initialized:
		status.State = StateRunning
	}

	return status
}

// resolve fetches the session page and extracts its metadata
func (p *Poller) resolve(ctx context.Context) (*Metadata, error) {
	page, err := p.client.FetchPage(ctx, p.cfg.SessionID)
	if err != nil {
		return nil, err
	}

	md, err := ExtractMetadata(p.cfg.SessionID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session %s: %w", p.cfg.SessionID, err)
	}

	return md, nil
}

// run is the main poll loop. The first fetch happens one interval after
// start.
func (p *Poller) run(ctx context.Context, md Metadata, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	continuation := md.Continuation

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("session poller stopped")
			return
		case <-ticker.C:
			// a stop raised together with the tick wins
			if ctx.Err() != nil {
				p.logger.Info("session poller stopped")
				return
			}
			continuation = p.fetchUpdate(ctx, md, continuation)
		}
	}
}

// fetchUpdate performs one poll and emits the raw response. It returns the
// continuation to use for the next poll.
func (p *Poller) fetchUpdate(ctx context.Context, md Metadata, continuation string) string {
	start := time.Now()

	body, err := p.client.FetchChat(ctx, &md, continuation)
	if ctx.Err() != nil {
		return continuation
	}
	if err != nil {
		p.recordFailure(start, "failed")
		p.logger.Warn("chat poll failed", zap.Error(err))
		return continuation
	}

	if !json.Valid(body) {
		p.recordFailure(start, "invalid")
		p.logger.Warn("unexpected chat response",
			zap.Int("bytes", len(body)))
		return continuation
	}

	if ctx.Err() != nil {
		return continuation
	}
	if err := p.bus.Emit(ctx, ports.EventChat, json.RawMessage(body)); err != nil {
		p.recordFailure(start, "failed")
		p.logger.Error("failed to emit chat update", zap.Error(err))
		return continuation
	}

	next := nextContinuation(body, continuation)
	p.recordSuccess(start, next)

	p.logger.Debug("chat update emitted",
		zap.Int("bytes", len(body)),
		zap.Bool("continuation_advanced", next != continuation))

	return next
}

func (p *Poller) recordSuccess(start time.Time, continuation string) {
	now := time.Now()
	p.metrics.RecordPoll("ok", now.Sub(start))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPollAt = now
	p.lastSuccessAt = now
	p.pollsSucceeded++
	p.continuation = continuation
}

func (p *Poller) recordFailure(start time.Time, status string) {
	now := time.Now()
	p.metrics.RecordPoll(status, now.Sub(start))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPollAt = now
	p.pollsFailed++
}

// nextContinuation reads the cursor a chat response hands out for the
// following request. Without one the current cursor is reused.
func nextContinuation(body []byte, current string) string {
	next := current
	gjson.GetBytes(body, "continuationContents.liveChatContinuation.continuations.0").
		ForEach(func(_, value gjson.Result) bool {
			if c := value.Get("continuation").String(); c != "" {
				next = c
				return false
			}
			return true
		})
	return next
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
