package infra

import (
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		name  string
		retry int
		want  time.Duration
	}{
		{"Negative", -1, 1 * time.Second},
		{"Zero", 0, 1 * time.Second},
		{"One", 1, 2 * time.Second},
		{"Five", 5, 32 * time.Second},
		{"Capped", 6, 60 * time.Second},
		{"Huge", 99, 60 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateBackoff(tt.retry); got != tt.want {
				t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.retry, got, tt.want)
			}
		})
	}
}
