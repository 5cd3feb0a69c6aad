package service

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/manuscript-review/internal/models"
)

// EventHandler observes sync lifecycle events.
type EventHandler func(models.SyncEvent)

// Subscription identifies one registration on the bus.
type Subscription uint64

type subscriber struct {
	id      Subscription
	handler EventHandler
}

// NotificationBus delivers events synchronously to its subscribers in
// registration order. A panicking handler is logged and skipped.
type NotificationBus struct {
	mu          sync.RWMutex
	nextID      Subscription
	subscribers []subscriber
	logger      *zap.Logger
}

// NewNotificationBus constructs an empty bus.
func NewNotificationBus(logger *zap.Logger) *NotificationBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationBus{logger: logger}
}

// Subscribe registers handler. Registering the same func twice yields two
// subscriptions and two invocations per event.
func (b *NotificationBus) Subscribe(handler EventHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subscribers = append(b.subscribers, subscriber{id: b.nextID, handler: handler})
	return b.nextID
}

// Unsubscribe removes the registration. Unknown subscriptions are ignored.
func (b *NotificationBus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s.id == sub {
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Len reports the number of active subscriptions.
func (b *NotificationBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish invokes every subscriber with event. Handlers subscribed or removed
// during delivery take effect from the next event.
func (b *NotificationBus) Publish(event models.SyncEvent) {
	b.mu.RLock()
	snapshot := make([]subscriber, len(b.subscribers))
	copy(snapshot, b.subscribers)
	b.mu.RUnlock()

	for _, s := range snapshot {
		b.deliver(s, event)
	}
}

func (b *NotificationBus) deliver(s subscriber, event models.SyncEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("sync event handler panicked",
				zap.Uint64("subscription", uint64(s.id)),
				zap.String("event", string(event.Type)),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if s.handler != nil {
		s.handler(event)
	}
}
