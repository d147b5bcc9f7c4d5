package safe

import (
	"math"
	"testing"
)

func TestAdd(t *testing.T) {
	if got := Add(2, 3); got != 5 {
		t.Errorf("Add(2, 3) = %d, want 5", got)
	}
	if got := Add(-2, -3); got != -5 {
		t.Errorf("Add(-2, -3) = %d, want -5", got)
	}
}

func TestAddPanic_Overflow(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on overflow")
		}
	}()
	Add(math.MaxInt64, 1)
}

func TestMul(t *testing.T) {
	tests := []struct {
		name string
		a, b int64
		want int64
	}{
		{"Zero", 0, 100, 0},
		{"Positive", 3, 4, 12},
		{"MixedSign", -3, 4, -12},
		{"BothNegative", -3, -4, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mul(tt.a, tt.b); got != tt.want {
				t.Errorf("Mul(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMulPanic_Overflow(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on overflow")
		}
	}()
	Mul(math.MaxInt64, 2)
}

func TestDivPanic_ByZero(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on divide by zero")
		}
	}()
	Div(1, 0)
}

func TestDiv(t *testing.T) {
	if got := Div(12, 4); got != 3 {
		t.Errorf("Div(12, 4) = %d, want 3", got)
	}
}
