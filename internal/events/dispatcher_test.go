package events

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInMemoryDispatcherFanOut(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	var calls []string
	d.Subscribe(EventConnectionAccepted, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("mail relay down")
	})
	d.Subscribe(EventConnectionAccepted, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventConnectionRejected, func(context.Context, Event) error {
		calls = append(calls, "rejected")
		return nil
	})

	err := d.Publish(context.Background(), Event{ID: "evt-1", Type: EventConnectionAccepted})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("unexpected handler calls %v", calls)
	}
	if logs.FilterMessage("event handler failed").Len() != 1 {
		t.Fatalf("expected one handler failure to be logged")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	if err := d.Publish(context.Background(), Event{Type: EventEntitlementGranted}); err != nil {
		t.Fatalf("publish: %v", err)
	}
}
