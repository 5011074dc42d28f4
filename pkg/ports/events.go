package ports

import (
	"context"
	"encoding/json"
	"time"
)

// EventChat is the event name used for raw live chat updates
const EventChat = "chat"

// Event is the wire shape of a bus message
type Event struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventHandler handles a single event delivered to a subscription
type EventHandler func(ctx context.Context, event Event) error

// Subscription is a live registration on an EventBus
type Subscription interface {
	// Close stops the listener. It is safe to call more than once.
	Close()

	// Lagged reports how many events were evicted before the listener
	// could consume them.
	Lagged() uint64
}

// EventBus publishes named events to zero or more subscribers
type EventBus interface {
	Emit(ctx context.Context, name string, value interface{}) error
	Subscribe(ctx context.Context, name string, handler EventHandler) (Subscription, error)
	Close() error
}
