package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/livepoll/pkg/adapters/events"
	"github.com/aescanero/livepoll/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingMetrics struct {
	ports.NopMetrics
	mu           sync.Mutex
	decodeErrors int
	lagged       int
}

func (m *countingMetrics) RecordDecodeError(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decodeErrors++
}

func (m *countingMetrics) RecordEventLagged(_ string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lagged += count
}

func (m *countingMetrics) laggedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lagged
}

func (m *countingMetrics) decodeErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decodeErrors
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func assertSilent[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected event: %v", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEmit_NoSubscribers(t *testing.T) {
	bus := NewEventBus(DefaultCapacity, nil, zap.NewNop())
	defer bus.Close()

	assert.NoError(t, bus.Emit(context.Background(), "x", "hello"))
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestEmit_MarshalError(t *testing.T) {
	bus := NewEventBus(DefaultCapacity, nil, zap.NewNop())
	defer bus.Close()

	err := bus.Emit(context.Background(), "x", make(chan int))
	assert.Error(t, err)
}

func TestEmit_RawMessageForwardedVerbatim(t *testing.T) {
	bus := NewEventBus(DefaultCapacity, nil, zap.NewNop())
	defer bus.Close()
	ctx := context.Background()

	got := make(chan ports.Event, 1)
	_, err := bus.Subscribe(ctx, "x", func(_ context.Context, event ports.Event) error {
		got <- event
		return nil
	})
	require.NoError(t, err)

	body := `{ "text": "<b>hi</b> & bye" }`
	require.NoError(t, bus.Emit(ctx, "x", json.RawMessage(body)))

	assert.Equal(t, body, string(receive(t, got).Data))
}

func TestEmit_InvalidRawMessage(t *testing.T) {
	bus := NewEventBus(DefaultCapacity, nil, zap.NewNop())
	defer bus.Close()

	err := bus.Emit(context.Background(), "x", json.RawMessage(`{not json`))
	assert.Error(t, err)
}

func TestSubscribe_LateSubscriberSeesOnlyLaterEvents(t *testing.T) {
	bus := NewEventBus(DefaultCapacity, nil, zap.NewNop())
	defer bus.Close()
	ctx := context.Background()

	require.NoError(t, bus.Emit(ctx, "x", "early"))

	got := make(chan string, 4)
	_, err := events.On(ctx, bus, "x", func(_ context.Context, v string) error {
		got <- v
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Emit(ctx, "x", "late"))

	assert.Equal(t, "late", receive(t, got))
	assertSilent(t, got)
}

func TestSubscribe_FanOut(t *testing.T) {
	bus := NewEventBus(DefaultCapacity, nil, zap.NewNop())
	defer bus.Close()
	ctx := context.Background()

	first := make(chan string, 1)
	second := make(chan string, 1)
	_, err := events.On(ctx, bus, "x", func(_ context.Context, v string) error {
		first <- v
		return nil
	})
	require.NoError(t, err)
	_, err = events.On(ctx, bus, "x", func(_ context.Context, v string) error {
		second <- v
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Emit(ctx, "x", "hello"))

	assert.Equal(t, "hello", receive(t, first))
	assert.Equal(t, "hello", receive(t, second))
}

func TestSubscribe_FiltersByName(t *testing.T) {
	bus := NewEventBus(DefaultCapacity, nil, zap.NewNop())
	defer bus.Close()
	ctx := context.Background()

	got := make(chan ports.Event, 4)
	_, err := bus.Subscribe(ctx, "chat", func(_ context.Context, event ports.Event) error {
		got <- event
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Emit(ctx, "other", 1))
	require.NoError(t, bus.Emit(ctx, "chat", 2))

	event := receive(t, got)
	assert.Equal(t, "chat", event.Name)
	assert.JSONEq(t, "2", string(event.Data))
	assert.NotEmpty(t, event.ID)
	assertSilent(t, got)
}

func TestSubscribe_DecodeErrorKeepsListening(t *testing.T) {
	metrics := &countingMetrics{}
	bus := NewEventBus(DefaultCapacity, metrics, zap.NewNop())
	defer bus.Close()
	ctx := context.Background()

	type update struct {
		Count int `json:"count"`
	}

	got := make(chan update, 4)
	_, err := events.On(ctx, bus, "x", func(_ context.Context, v update) error {
		got <- v
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Emit(ctx, "x", "not an object"))
	require.NoError(t, bus.Emit(ctx, "x", update{Count: 5}))

	assert.Equal(t, 5, receive(t, got).Count)
	assert.Equal(t, 1, metrics.decodeErrorCount())
}

func TestSubscribe_HandlerErrorKeepsListening(t *testing.T) {
	bus := NewEventBus(DefaultCapacity, nil, zap.NewNop())
	defer bus.Close()
	ctx := context.Background()

	got := make(chan int, 4)
	_, err := events.On(ctx, bus, "x", func(_ context.Context, v int) error {
		got <- v
		if v == 1 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Emit(ctx, "x", 1))
	require.NoError(t, bus.Emit(ctx, "x", 2))

	assert.Equal(t, 1, receive(t, got))
	assert.Equal(t, 2, receive(t, got))
}

func TestSubscribe_LaggingReceiverDropsOldest(t *testing.T) {
	metrics := &countingMetrics{}
	bus := NewEventBus(2, metrics, zap.NewNop())
	defer bus.Close()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	got := make(chan int, 16)
	sub, err := events.On(ctx, bus, "x", func(_ context.Context, v int) error {
		if v == 0 {
			close(started)
			<-release
		}
		got <- v
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Emit(ctx, "x", 0))
	receive(t, started)

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 5; i++ {
			_ = bus.Emit(ctx, "x", i)
		}
		close(done)
	}()
	// the producer must not be stalled by the blocked handler
	receive(t, done)

	close(release)
	assert.Equal(t, 0, receive(t, got))
	assert.Equal(t, 4, receive(t, got))
	assert.Equal(t, 5, receive(t, got))
	assertSilent(t, got)

	assert.Equal(t, uint64(3), sub.Lagged())
	assert.Equal(t, 3, metrics.laggedCount())
}

func TestSubscription_Close(t *testing.T) {
	bus := NewEventBus(DefaultCapacity, nil, zap.NewNop())
	defer bus.Close()
	ctx := context.Background()

	got := make(chan int, 4)
	sub, err := events.On(ctx, bus, "x", func(_ context.Context, v int) error {
		got <- v
		return nil
	})
	require.NoError(t, err)

	sub.Close()
	sub.Close()
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Emit(ctx, "x", 1))
	assertSilent(t, got)
}

func TestSubscribe_ContextCancel(t *testing.T) {
	bus := NewEventBus(DefaultCapacity, nil, zap.NewNop())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := bus.Subscribe(ctx, "x", func(context.Context, ports.Event) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, bus.SubscriberCount())

	cancel()
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestClose_EndsSubscriptions(t *testing.T) {
	bus := NewEventBus(DefaultCapacity, nil, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := bus.Subscribe(ctx, "x", func(context.Context, ports.Event) error { return nil })
		require.NoError(t, err)
	}

	require.NoError(t, bus.Close())
	assert.Equal(t, 0, bus.SubscriberCount())
	assert.NoError(t, bus.Close())

	assert.NoError(t, bus.Emit(ctx, "x", 1))
	_, err := bus.Subscribe(ctx, "x", func(context.Context, ports.Event) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
