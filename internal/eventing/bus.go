package eventing

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// Handler handles a published message.
type Handler func(ctx context.Context, message any) error

// Bus delivers messages to the handlers subscribed to their dynamic type.
type Bus interface {
	Publish(ctx context.Context, message any) error
	Subscribe(messageType reflect.Type, handler Handler)
}

// ErrNilMessage is returned when a nil message is published.
var ErrNilMessage = errors.New("eventing: nil message")

// InMemoryBus is a synchronous in-process bus.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]Handler
}

// NewInMemoryBus constructs a new in-memory bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[reflect.Type][]Handler)}
}

// Publish calls every handler of the message's type and returns the first handler error.
func (b *InMemoryBus) Publish(ctx context.Context, message any) error {
	if message == nil {
		return ErrNilMessage
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[reflect.TypeOf(message)]...)
	b.mu.RUnlock()

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, message); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe registers a handler for messages whose dynamic type is messageType.
func (b *InMemoryBus) Subscribe(messageType reflect.Type, handler Handler) {
	if messageType == nil || handler == nil {
		return
	}

	b.mu.Lock()
	b.handlers[messageType] = append(b.handlers[messageType], handler)
	b.mu.Unlock()
}

// Subscribe registers a typed handler for messages of type T.
func Subscribe[T any](bus Bus, handler func(ctx context.Context, message T) error) {
	if bus == nil || handler == nil {
		return
	}
	bus.Subscribe(reflect.TypeFor[T](), func(ctx context.Context, message any) error {
		return handler(ctx, message.(T))
	})
}
