package broker

import (
	"testing"

	"github.com/yomolify/bt-ccxt-store/internal/domain"
)

func TestNotifier_FIFO(t *testing.T) {
	n := NewNotifier()

	if _, ok := n.Poll(); ok {
		t.Fatal("Poll on empty queue returned an order")
	}

	a := &domain.Order{ID: "a"}
	b := &domain.Order{ID: "b"}
	c := &domain.Order{ID: "c"}
	n.Push(a)
	n.Push(b)
	n.Push(c)

	if n.Len() != 3 {
		t.Fatalf("Len = %d, want 3", n.Len())
	}

	for _, want := range []*domain.Order{a, b, c} {
		got, ok := n.Poll()
		if !ok {
			t.Fatal("Poll returned empty before queue drained")
		}
		if got != want {
			t.Errorf("Poll = %s, want %s", got.ID, want.ID)
		}
	}

	if _, ok := n.Poll(); ok {
		t.Error("Poll after drain returned an order")
	}
}
