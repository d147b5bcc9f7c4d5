package domain

import (
	"testing"

	"github.com/yomolify/bt-ccxt-store/pkg/quant"
)

func openSnapshot() Snapshot {
	return Snapshot{
		"id":     "42",
		"status": "open",
		"side":   "buy",
		"amount": 1.0,
		"price":  100.0,
	}
}

func TestNewOrder(t *testing.T) {
	o, err := NewOrder("strat", "BTC/USD", openSnapshot())
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	if o.ID != "42" {
		t.Errorf("ID = %q, want %q", o.ID, "42")
	}
	if o.Side != SideBuy {
		t.Errorf("Side = %q, want buy", o.Side)
	}
	if o.SizeSats != quant.ToQtySats(1.0) {
		t.Errorf("SizeSats = %d, want %d", o.SizeSats, quant.ToQtySats(1.0))
	}
	if o.Status() != StatusSubmitted {
		t.Errorf("Status = %v, want SUBMITTED", o.Status())
	}
	if !o.IsOpen() {
		t.Error("new order should be open")
	}
}

func TestNewOrder_MissingID(t *testing.T) {
	snap := openSnapshot()
	delete(snap, "id")
	if _, err := NewOrder(nil, "BTC/USD", snap); err == nil {
		t.Error("expected error for snapshot without id")
	}
}

func TestOrder_ApplyFill_Idempotent(t *testing.T) {
	o, _ := NewOrder(nil, "BTC/USD", openSnapshot())

	f := Fill{ID: "f1", Datetime: "t1", QtySats: quant.ToQtySats(0.5), PriceMicros: quant.ToPriceMicros(100)}

	if !o.ApplyFill(f) {
		t.Fatal("first application should be new")
	}
	if o.ApplyFill(f) {
		t.Fatal("second application of same fill id must be suppressed")
	}
	if got := o.FilledSats(); got != quant.ToQtySats(0.5) {
		t.Errorf("FilledSats = %d, want %d", got, quant.ToQtySats(0.5))
	}
	if got := o.AvgFillPriceMicros(); got != quant.ToPriceMicros(100) {
		t.Errorf("AvgFillPriceMicros = %d, want %d", got, quant.ToPriceMicros(100))
	}
	if o.Status() != StatusPartiallyFilled {
		t.Errorf("Status = %v, want PARTIALLY_FILLED", o.Status())
	}
}

func TestOrder_ApplyFills_WeightedAverage(t *testing.T) {
	o, _ := NewOrder(nil, "BTC/USD", openSnapshot())

	fills := []Fill{
		{ID: "f1", QtySats: quant.ToQtySats(0.5), PriceMicros: quant.ToPriceMicros(100)},
		{ID: "f2", QtySats: quant.ToQtySats(0.5), PriceMicros: quant.ToPriceMicros(200)},
	}
	if applied := o.ApplyFills(fills); applied != 2 {
		t.Fatalf("applied = %d, want 2", applied)
	}

	if got := o.FilledSats(); got != quant.ToQtySats(1.0) {
		t.Errorf("FilledSats = %d, want %d", got, quant.ToQtySats(1.0))
	}
	if got := o.AvgFillPriceMicros(); got != quant.ToPriceMicros(150) {
		t.Errorf("AvgFillPriceMicros = %d, want %d", got, quant.ToPriceMicros(150))
	}

	// Re-applying the whole batch is a no-op.
	if applied := o.ApplyFills(fills); applied != 0 {
		t.Errorf("re-applied = %d, want 0", applied)
	}
	if got := len(o.Fills()); got != 2 {
		t.Errorf("len(Fills) = %d, want 2", got)
	}
}

func TestOrder_ClaimTerminal_Once(t *testing.T) {
	o, _ := NewOrder(nil, "BTC/USD", openSnapshot())

	if !o.ClaimTerminal() {
		t.Fatal("first claim should win")
	}
	if o.ClaimTerminal() {
		t.Fatal("second claim must lose")
	}
}

func TestStatus_Terminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusSubmitted, false},
		{StatusPartiallyFilled, false},
		{StatusClosed, true},
		{StatusCanceled, true},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}
