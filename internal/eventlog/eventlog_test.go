package eventlog

import (
	"context"
	"testing"
	"time"
)

func TestRecordAndSince(t *testing.T) {
	l, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	ctx := context.Background()
	if err := l.Record(ctx, TypeZoneEntered, "z1", map[string]string{"name": "Home"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, TypeZoneExited, "z1", nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	events, err := l.Since(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != TypeZoneEntered || events[1].Type != TypeZoneExited {
		t.Fatalf("unexpected order: %+v", events)
	}
}

func TestSubscribeReceivesLiveEvents(t *testing.T) {
	l, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	ch := l.Subscribe(4)
	defer l.Unsubscribe(ch)

	if err := l.Record(context.Background(), TypeActionCompleted, "z1", nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Type != TypeActionCompleted {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribed event")
	}
}

func TestPruneRemovesOldEvents(t *testing.T) {
	l, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	if err := l.Record(context.Background(), TypeZoneEntered, "z1", nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	n, err := l.Prune(context.Background(), -time.Hour) // retention in the past: prunes everything
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned event, got %d", n)
	}
}
