package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/livepoll/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamsBridge copies bus events into Redis Streams so that consumers in
// other processes can follow a session
type StreamsBridge struct {
	client        *redis.Client
	logger        *zap.Logger
	consumerGroup string
	consumerName  string
	maxLen        int64
}

// NewStreamsBridge creates a new Redis Streams bridge
func NewStreamsBridge(client *redis.Client, consumerGroup, consumerName string, maxLen int64, logger *zap.Logger) *StreamsBridge {
	return &StreamsBridge{
		client:        client,
		logger:        logger,
		consumerGroup: consumerGroup,
		consumerName:  consumerName,
		maxLen:        maxLen,
	}
}

// Forward subscribes to name on bus and appends every event to its stream
func (b *StreamsBridge) Forward(ctx context.Context, bus ports.EventBus, name string) (ports.Subscription, error) {
	sub, err := bus.Subscribe(ctx, name, b.Publish)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe bridge: %w", err)
	}

	b.logger.Info("forwarding events to stream",
		zap.String("event", name),
		zap.String("stream", getStreamKey(name)))

	return sub, nil
}

// Publish appends event to the stream for its name
func (b *StreamsBridge) Publish(ctx context.Context, event ports.Event) error {
	streamKey := getStreamKey(event.Name)

	values, err := encodeEvent(event)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: values,
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}

	if _, err := b.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	b.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("event", event.Name),
		zap.String("stream", streamKey))

	return nil
}

// Consume reads the stream for name through the bridge's consumer group
// until ctx is cancelled
func (b *StreamsBridge) Consume(ctx context.Context, name string, handler ports.EventHandler) error {
	streamKey := getStreamKey(name)

	err := b.client.XGroupCreateMkStream(ctx, streamKey, b.consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	b.logger.Info("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("consumer_group", b.consumerGroup),
		zap.String("consumer", b.consumerName))

	go b.readStream(ctx, streamKey, handler)

	return nil
}

// readStream reads events from a stream
func (b *StreamsBridge) readStream(ctx context.Context, streamKey string, handler ports.EventHandler) {
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.consumerGroup,
			Consumer: b.consumerName,
			Streams:  []string{streamKey, ">"},
			Count:    10,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			b.logger.Error("failed to read from stream",
				zap.String("stream", streamKey),
				zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				b.processMessage(ctx, streamKey, message, handler)
			}
		}
	}
}

// processMessage processes a single message from the stream
func (b *StreamsBridge) processMessage(ctx context.Context, streamKey string, message redis.XMessage, handler ports.EventHandler) {
	event, err := decodeEvent(message.Values)
	if err != nil {
		b.logger.Error("invalid message format",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := handler(ctx, event); err != nil {
		b.logger.Error("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := b.client.XAck(ctx, streamKey, b.consumerGroup, message.ID).Err(); err != nil {
		b.logger.Error("failed to acknowledge message",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
	}
}

func encodeEvent(event ports.Event) (map[string]interface{}, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return map[string]interface{}{"data": string(data)}, nil
}

func decodeEvent(values map[string]interface{}) (ports.Event, error) {
	var event ports.Event

	data, ok := values["data"].(string)
	if !ok {
		return event, errors.New("missing data field")
	}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return event, nil
}

// getStreamKey returns the Redis stream key for an event name
func getStreamKey(name string) string {
	return fmt.Sprintf("livepoll:events:%s", name)
}
