package audit

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestLogger(t *testing.T) Logger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndReadBack(t *testing.T) {
	ctx := context.Background()
	l := openTestLogger(t)

	l.Record(ctx, Event{SessionID: "s1", Type: EventRecordLoad, Path: "/blog", Alt: "_primary"})
	l.Record(ctx, Event{SessionID: "s1", Type: EventRecordSave, Path: "/blog", Alt: "_primary", Detail: "3 fields"})
	l.Record(ctx, Event{SessionID: "other", Type: EventRecordDelete, Path: "/old", Alt: "_primary"})

	events, err := l.Events(ctx, "s1")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventRecordLoad || events[1].Type != EventRecordSave {
		t.Fatalf("event order = %s, %s", events[0].Type, events[1].Type)
	}
	if events[1].Detail != "3 fields" {
		t.Fatalf("detail = %q", events[1].Detail)
	}
	if events[0].CreatedAt == 0 {
		t.Fatal("created_at not set")
	}
}

func TestEmptyPathDisablesLogging(t *testing.T) {
	ctx := context.Background()

	l, err := Open("")
	if err != nil {
		t.Fatalf("Open(\"\"): %v", err)
	}
	defer l.Close()

	l.Record(ctx, Event{SessionID: "s1", Type: EventRecordLoad, Path: "/"})

	events, err := l.Events(ctx, "s1")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("disabled logger stored %d events", len(events))
	}
}
