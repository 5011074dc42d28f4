package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/livepoll/pkg/adapters/events"
	"github.com/aescanero/livepoll/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCapacity is the number of pending events buffered per subscriber
const DefaultCapacity = 16

// ErrClosed is returned when subscribing to a closed bus
var ErrClosed = errors.New("event bus closed")

// EventBus is an in-process broadcast bus.
//
// Every subscription owns a buffer of fixed capacity. Emit never blocks:
// when a buffer is full the oldest pending event is evicted and counted as
// lag for that subscription.
type EventBus struct {
	capacity int
	metrics  ports.MetricsCollector
	logger   *zap.Logger

	mu          sync.RWMutex
	subscribers map[*subscription]struct{}
	closed      bool
	wg          sync.WaitGroup
}

type subscription struct {
	bus     *EventBus
	name    string
	buf     chan ports.Event
	handler ports.EventHandler
	cancel  context.CancelFunc
	lagged  atomic.Uint64
}

// NewEventBus creates a new in-memory event bus
func NewEventBus(capacity int, metrics ports.MetricsCollector, logger *zap.Logger) *EventBus {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventBus{
		capacity:    capacity,
		metrics:     metrics,
		logger:      logger,
		subscribers: make(map[*subscription]struct{}),
	}
}

// Emit serializes value and broadcasts it to every current subscriber.
// A json.RawMessage value is forwarded byte for byte. With no subscribers,
// or after Close, it does nothing.
func (e *EventBus) Emit(ctx context.Context, name string, value interface{}) error {
	data, err := encodePayload(value)
	if err != nil {
		return err
	}

	event := ports.Event{
		ID:        uuid.New().String(),
		Name:      name,
		Timestamp: time.Now(),
		Data:      data,
	}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil
	}
	subs := make([]*subscription, 0, len(e.subscribers))
	for s := range e.subscribers {
		subs = append(subs, s)
	}
	e.mu.RUnlock()

	for _, s := range subs {
		s.deliver(event)
	}

	e.metrics.RecordEventEmitted(name)
	e.logger.Debug("event emitted",
		zap.String("event_id", event.ID),
		zap.String("event", name),
		zap.Int("subscribers", len(subs)))

	return nil
}

func encodePayload(value interface{}) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, errors.New("failed to marshal event: invalid raw JSON")
		}
		return append(json.RawMessage(nil), raw...), nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// Subscribe starts a listener that invokes handler for every event named
// name. The listener ends when ctx is cancelled, the subscription is closed
// or the bus is closed.
func (e *EventBus) Subscribe(ctx context.Context, name string, handler ports.EventHandler) (ports.Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &subscription{
		bus:     e,
		name:    name,
		buf:     make(chan ports.Event, e.capacity),
		handler: handler,
		cancel:  cancel,
	}
	e.subscribers[s] = struct{}{}
	e.metrics.SetActiveSubscriptions(len(e.subscribers))

	e.wg.Add(1)
	go s.run(subCtx)

	e.logger.Debug("subscribed to events", zap.String("event", name))

	return s, nil
}

// Close cancels every subscription and waits for their listeners to exit
func (e *EventBus) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	subs := make([]*subscription, 0, len(e.subscribers))
	for s := range e.subscribers {
		subs = append(subs, s)
	}
	e.mu.Unlock()

	for _, s := range subs {
		s.cancel()
	}
	e.wg.Wait()

	return nil
}

// SubscriberCount returns the number of live subscriptions
func (e *EventBus) SubscriberCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers)
}

func (e *EventBus) remove(s *subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.subscribers, s)
	e.metrics.SetActiveSubscriptions(len(e.subscribers))
}

// deliver enqueues event, evicting the oldest pending events until it fits
func (s *subscription) deliver(event ports.Event) {
	for {
		select {
		case s.buf <- event:
			return
		default:
		}

		select {
		case old := <-s.buf:
			s.lagged.Add(1)
			s.bus.metrics.RecordEventLagged(old.Name, 1)
		default:
		}
	}
}

func (s *subscription) run(ctx context.Context) {
	defer s.bus.wg.Done()
	defer s.bus.remove(s)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.buf:
			if event.Name != s.name {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.handle(ctx, event)
		}
	}
}

func (s *subscription) handle(ctx context.Context, event ports.Event) {
	err := s.handler(ctx, event)
	if err == nil {
		return
	}

	var decodeErr *events.DecodeError
	if errors.As(err, &decodeErr) {
		s.bus.metrics.RecordDecodeError(event.Name)
		s.bus.logger.Warn("failed to decode event",
			zap.String("event_id", event.ID),
			zap.String("event", event.Name),
			zap.Error(err))
		return
	}

	s.bus.logger.Error("handler error",
		zap.String("event_id", event.ID),
		zap.String("event", event.Name),
		zap.Error(err))
}

func (s *subscription) Close() {
	s.cancel()
}

func (s *subscription) Lagged() uint64 {
	return s.lagged.Load()
}
