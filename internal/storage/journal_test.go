package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_AppendAndQuery(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()
	now := time.Now().UnixMicro()

	events := []OrderEvent{
		{OrderID: "42", Symbol: "BTC/USDT", Event: EventSubmitted, TsUnixM: now},
		{OrderID: "42", Symbol: "BTC/USDT", Event: EventFill, TsUnixM: now, Payload: map[string]any{"fill_id": "f1"}},
		{OrderID: "42", Symbol: "BTC/USDT", Event: EventClosed, TsUnixM: now},
		{OrderID: "43", Symbol: "ETH/USDT", Event: EventSubmitted, TsUnixM: now},
	}
	for _, ev := range events {
		if err := j.Append(ctx, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := j.EventsFor(ctx, "42")
	if err != nil {
		t.Fatalf("EventsFor: %v", err)
	}
	want := []string{EventSubmitted, EventFill, EventClosed}
	if len(got) != len(want) {
		t.Fatalf("len(events) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	n, err := j.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Errorf("Count = %d, want 4", n)
	}
}

func TestJournal_EventsFor_Unknown(t *testing.T) {
	j := testJournal(t)

	got, err := j.EventsFor(context.Background(), "missing")
	if err != nil {
		t.Fatalf("EventsFor: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no events, got %v", got)
	}
}
