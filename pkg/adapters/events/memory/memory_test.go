package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []domain.StatusEvent
}

func (c *collector) handle(ctx context.Context, event domain.StatusEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *collector) details() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Detail
	}
	return out
}

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewInMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, second := &collector{}, &collector{}
	require.NoError(t, bus.Subscribe(ctx, "launch.events", first.handle))
	require.NoError(t, bus.Subscribe(ctx, "launch.events", second.handle))

	var want []string
	for i := 0; i < 50; i++ {
		detail := fmt.Sprintf("event-%d", i)
		want = append(want, detail)
		require.NoError(t, bus.Publish(ctx, "launch.events", domain.StatusEvent{Detail: detail}))
	}

	for _, c := range []*collector{first, second} {
		c := c
		require.Eventually(t, func() bool { return len(c.details()) == 50 }, time.Second, time.Millisecond)
		assert.Equal(t, want, c.details())
	}
}

func TestPublishIgnoresOtherTopics(t *testing.T) {
	bus := NewInMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &collector{}
	require.NoError(t, bus.Subscribe(ctx, "launch.events", c.handle))
	require.NoError(t, bus.Publish(ctx, "other", domain.StatusEvent{Detail: "x"}))
	require.NoError(t, bus.Publish(ctx, "launch.events", domain.StatusEvent{Detail: "y"}))

	require.Eventually(t, func() bool { return len(c.details()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"y"}, c.details())
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := NewInMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Subscribe(ctx, "launch.events", (&collector{}).handle))
	assert.Equal(t, 1, bus.SubscriberCount("launch.events"))

	cancel()
	require.Eventually(t, func() bool { return bus.SubscriberCount("launch.events") == 0 }, time.Second, time.Millisecond)
}

func TestUnsubscribeAndClose(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx := context.Background()

	require.NoError(t, bus.Subscribe(ctx, "launch.events", (&collector{}).handle))
	require.NoError(t, bus.Unsubscribe(ctx, "launch.events"))
	assert.Equal(t, 0, bus.SubscriberCount("launch.events"))

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(ctx, "launch.events", domain.StatusEvent{}), ErrBusClosed)
	assert.ErrorIs(t, bus.Subscribe(ctx, "launch.events", (&collector{}).handle), ErrBusClosed)
}

func TestPublishRespectsContextWhenSubscriberLags(t *testing.T) {
	bus := NewInMemoryEventBusWithBuffer(1)
	defer bus.Close()

	block := make(chan struct{})
	defer close(block)
	require.NoError(t, bus.Subscribe(context.Background(), "launch.events", func(ctx context.Context, event domain.StatusEvent) error {
		<-block
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = bus.Publish(ctx, "launch.events", domain.StatusEvent{})
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
