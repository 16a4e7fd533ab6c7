package ports

import (
	"context"

	"github.com/aescanero/launchorch/pkg/domain"
)

// TopicLaunchEvents is the topic carrying every run's status events
const TopicLaunchEvents = "launch.events"

// EventHandler handles a status event
type EventHandler func(ctx context.Context, event domain.StatusEvent) error

// EventBus publishes status events and delivers them to subscribers.
// Events published by one goroutine reach each subscriber in publish order.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.StatusEvent) error

	// Subscribe registers handler until ctx is cancelled
	Subscribe(ctx context.Context, topic string, handler EventHandler) error

	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}
