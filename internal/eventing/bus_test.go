package eventing

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type pinged struct {
	Value int
}

type ponged struct{}

func TestInMemoryBus_DeliversByType(t *testing.T) {
	bus := NewInMemoryBus()
	var got []int
	Subscribe(bus, func(_ context.Context, msg pinged) error {
		got = append(got, msg.Value)
		return nil
	})
	Subscribe(bus, func(_ context.Context, _ ponged) error {
		t.Fatalf("ponged handler must not receive pinged")
		return nil
	})

	if err := bus.Publish(context.Background(), pinged{Value: 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Publish(context.Background(), &pinged{Value: 8}); err != nil {
		t.Fatalf("unsubscribed pointer type: %v", err)
	}
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestInMemoryBus_ReturnsFirstError(t *testing.T) {
	bus := NewInMemoryBus()
	first := errors.New("first")
	calls := 0
	typ := reflect.TypeFor[pinged]()
	bus.Subscribe(typ, func(context.Context, any) error {
		calls++
		return first
	})
	bus.Subscribe(typ, func(context.Context, any) error {
		calls++
		return errors.New("second")
	})

	if err := bus.Publish(context.Background(), pinged{}); !errors.Is(err, first) {
		t.Fatalf("expected first error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both handlers called, got %d", calls)
	}
}

func TestInMemoryBus_NilMessage(t *testing.T) {
	if err := NewInMemoryBus().Publish(context.Background(), nil); err != ErrNilMessage {
		t.Fatalf("expected ErrNilMessage, got %v", err)
	}
}
