package infra

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(3, 1000)

	for i := 0; i < 3; i++ {
		if !rl.TryAcquire() {
			t.Fatalf("token %d should be available in burst", i)
		}
	}
	if rl.TryAcquire() {
		t.Error("burst exhausted, acquire should fail")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(1, 100) // 100/s refills fast

	if !rl.TryAcquire() {
		t.Fatal("first token should be available")
	}
	time.Sleep(20 * time.Millisecond)
	if !rl.TryAcquire() {
		t.Error("token should have refilled")
	}
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	rl := NewRateLimiter(1, 0.001) // effectively never refills

	rl.TryAcquire() // drain

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); err == nil {
		t.Error("Wait should return the context error when cancelled")
	}
}
