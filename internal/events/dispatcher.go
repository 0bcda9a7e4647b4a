package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/domain"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher allows event publication and subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(trigger domain.TriggerEvent, handler EventHandler)
}

// inMemoryDispatcher invokes handlers synchronously in subscription order.
// Handler errors are logged and do not stop remaining handlers.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	listeners map[domain.TriggerEvent][]EventHandler
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher(logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inMemoryDispatcher{
		logger:    logger,
		listeners: make(map[domain.TriggerEvent][]EventHandler),
	}
}

// Publish synchronously invokes handlers for the given event.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			d.logger.Error("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
	return nil
}

// Subscribe registers a handler for the given trigger event.
func (d *inMemoryDispatcher) Subscribe(trigger domain.TriggerEvent, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[trigger] = append(d.listeners[trigger], handler)
}
