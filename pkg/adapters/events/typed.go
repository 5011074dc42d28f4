package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aescanero/livepoll/pkg/ports"
)

// DecodeError reports an event payload that did not match the shape a
// subscriber expects. It never terminates the subscription.
type DecodeError struct {
	Event string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %q event: %v", e.Event, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// On subscribes handler to name, decoding each event's data into T before
// invoking it.
func On[T any](ctx context.Context, bus ports.EventBus, name string, handler func(ctx context.Context, payload T) error) (ports.Subscription, error) {
	return bus.Subscribe(ctx, name, func(ctx context.Context, event ports.Event) error {
		var payload T
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return &DecodeError{Event: event.Name, Err: err}
		}
		return handler(ctx, payload)
	})
}
