package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/manuscript-review/internal/models"
)

type syncEventPublisher interface {
	Publish(ctx context.Context, event models.SyncEvent) (int64, error)
}

// EventRelay republishes bus events to an out-of-process channel. Publish
// failures are logged and never reach the bus.
type EventRelay struct {
	publisher syncEventPublisher
	timeout   time.Duration
	logger    *zap.Logger
}

// NewEventRelay constructs a relay.
func NewEventRelay(publisher syncEventPublisher, timeout time.Duration, logger *zap.Logger) *EventRelay {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventRelay{publisher: publisher, timeout: timeout, logger: logger}
}

// Attach subscribes the relay to bus.
func (r *EventRelay) Attach(bus *NotificationBus) Subscription {
	return bus.Subscribe(r.Handle)
}

// Handle forwards one event.
func (r *EventRelay) Handle(event models.SyncEvent) {
	if r.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	receivers, err := r.publisher.Publish(ctx, event)
	if err != nil {
		r.logger.Warn("sync event relay failed", zap.String("event", string(event.Type)), zap.Error(err))
		return
	}
	r.logger.Debug("sync event relayed", zap.String("event", string(event.Type)), zap.Int64("receivers", receivers))
}
