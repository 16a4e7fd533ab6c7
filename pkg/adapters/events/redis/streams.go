package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/aescanero/launchorch/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultMaxLen caps each stream, trimmed approximately on every XADD
const DefaultMaxLen = 10000

// StreamsEventBus implements EventBus using Redis Streams. Every subscriber
// reads the stream with its own cursor, so each one sees every event in
// stream order.
type StreamsEventBus struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	maxLen int64
	block  time.Duration

	mu      sync.Mutex
	cancels map[string][]context.CancelFunc
	wg      sync.WaitGroup
}

// NewStreamsEventBus creates a new Redis Streams event bus
func NewStreamsEventBus(client *redis.Client, prefix string, maxLen int64, logger *zap.Logger) *StreamsEventBus {
	if prefix == "" {
		prefix = "launchorch"
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &StreamsEventBus{
		client:  client,
		logger:  logger,
		prefix:  prefix,
		maxLen:  maxLen,
		block:   time.Second,
		cancels: make(map[string][]context.CancelFunc),
	}
}

// Publish appends an event to the topic stream
func (e *StreamsEventBus) Publish(ctx context.Context, topic string, event domain.StatusEvent) error {
	streamKey := e.streamKey(topic)

	// Serialize event
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		MaxLen: e.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("run_id", event.RunID),
		zap.String("type", string(event.Type)),
		zap.String("stream", streamKey))

	return nil
}

// Subscribe delivers events published after this call until ctx is cancelled
func (e *StreamsEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	streamKey := e.streamKey(topic)

	// Start from the current tail so no event published after Subscribe is missed
	cursor := "0-0"
	last, err := e.client.XRevRangeN(ctx, streamKey, "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read stream tail: %w", err)
	}
	if len(last) > 0 {
		cursor = last[0].ID
	}

	subCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancels[topic] = append(e.cancels[topic], cancel)
	e.mu.Unlock()

	e.logger.Info("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("topic", topic),
		zap.String("cursor", cursor))

	e.wg.Add(1)
	go e.readStream(subCtx, streamKey, cursor, handler)

	return nil
}

// readStream reads events from a stream
func (e *StreamsEventBus) readStream(ctx context.Context, streamKey, cursor string, handler ports.EventHandler) {
	defer e.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := e.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{streamKey, cursor},
			Count:   100,
			Block:   e.block,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				// No new messages
				continue
			}
			if ctx.Err() != nil {
				return
			}
			e.logger.Error("failed to read from stream",
				zap.String("stream", streamKey),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				cursor = message.ID
				e.processMessage(ctx, streamKey, message, handler)
			}
		}
	}
}

// processMessage processes a single message from the stream
func (e *StreamsEventBus) processMessage(ctx context.Context, streamKey string, message redis.XMessage, handler ports.EventHandler) {
	data, ok := message.Values["data"].(string)
	if !ok {
		e.logger.Error("invalid message format",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID))
		return
	}

	var event domain.StatusEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		e.logger.Error("failed to unmarshal event",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := handler(ctx, event); err != nil {
		e.logger.Warn("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
	}
}

// Unsubscribe stops every subscription on a topic
func (e *StreamsEventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	cancels := e.cancels[topic]
	delete(e.cancels, topic)
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

// Close stops all subscriptions and waits for their readers. The Redis
// client is closed by the caller.
func (e *StreamsEventBus) Close() error {
	e.mu.Lock()
	all := e.cancels
	e.cancels = make(map[string][]context.CancelFunc)
	e.mu.Unlock()

	for _, cancels := range all {
		for _, cancel := range cancels {
			cancel()
		}
	}
	e.wg.Wait()
	return nil
}

// streamKey returns the Redis stream key for a topic
func (e *StreamsEventBus) streamKey(topic string) string {
	return fmt.Sprintf("%s:events:%s", e.prefix, topic)
}
