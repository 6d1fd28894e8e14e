package events

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestPublishRunsEveryHandlerDespiteFailures(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop(), nil)

	var calls []string
	d.Subscribe(EventCommentAdded, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("store down")
	})
	d.Subscribe(EventCommentAdded, func(context.Context, Event) error {
		calls = append(calls, "second")
		panic("boom")
	})
	d.Subscribe(EventCommentAdded, func(_ context.Context, e Event) error {
		calls = append(calls, "third")
		if e.ID == "" || e.Timestamp.IsZero() {
			t.Errorf("event id and timestamp should be filled in")
		}
		return nil
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	d.Publish(context.Background(), Event{Type: EventCommentAdded, TicketID: "t1"})

	if len(calls) != 3 || calls[0] != "first" || calls[2] != "third" {
		t.Fatalf("unexpected handler calls %v", calls)
	}
}
