package domain

import (
	"encoding/json"
	"testing"

	"github.com/yomolify/bt-ccxt-store/pkg/quant"
)

func TestSnapshot_Str(t *testing.T) {
	snap := Snapshot{"id": "42", "orderId": 10260663906.0, "nil": nil}

	if got := snap.Str("id"); got != "42" {
		t.Errorf("Str(id) = %q, want %q", got, "42")
	}
	if got := snap.Str("orderId"); got != "10260663906" {
		t.Errorf("Str(orderId) = %q, want %q", got, "10260663906")
	}
	if got := snap.Str("nil"); got != "" {
		t.Errorf("Str(nil) = %q, want empty", got)
	}
	if got := snap.Str("missing"); got != "" {
		t.Errorf("Str(missing) = %q, want empty", got)
	}
}

func TestSnapshot_Numbers(t *testing.T) {
	snap := Snapshot{"price": 9511.51, "amount": "0.004"}

	p, ok := snap.Price("price")
	if !ok || p != quant.ToPriceMicros(9511.51) {
		t.Errorf("Price = %d ok=%v, want %d", p, ok, quant.ToPriceMicros(9511.51))
	}
	q, ok := snap.Qty("amount")
	if !ok || q != quant.ToQtySats(0.004) {
		t.Errorf("Qty = %d ok=%v, want %d", q, ok, quant.ToQtySats(0.004))
	}
	if _, ok := snap.Price("missing"); ok {
		t.Error("missing key should not parse")
	}
}

// String-typed numbers must survive exactly; these values lose digits
// through a float64 round trip.
func TestSnapshot_StringNumbersAreExact(t *testing.T) {
	snap := Snapshot{
		"price":  "1234567890123.456789",
		"amount": "123456789.12345678",
		"empty":  "",
	}

	p, ok := snap.Price("price")
	if !ok || p != quant.PriceMicros(1234567890123456789) {
		t.Errorf("Price = %d ok=%v, want 1234567890123456789", p, ok)
	}
	q, ok := snap.Qty("amount")
	if !ok || q != quant.QtySats(12345678912345678) {
		t.Errorf("Qty = %d ok=%v, want 12345678912345678", q, ok)
	}
	if _, ok := snap.Price("empty"); ok {
		t.Error("empty string should read as not reported")
	}
}

func TestSnapshot_Trades(t *testing.T) {
	raw := `{
		"id": "42",
		"trades": [
			{"id": "f1", "datetime": "t1", "amount": 0.5, "price": 100},
			{"id": "f2", "datetime": "t2", "amount": 0.25, "price": 101},
			{"datetime": "no-id", "amount": 1, "price": 1}
		]
	}`
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	fills := snap.Trades()
	if len(fills) != 2 {
		t.Fatalf("len(fills) = %d, want 2 (entry without id skipped)", len(fills))
	}
	if fills[0].ID != "f1" || fills[0].QtySats != quant.ToQtySats(0.5) || fills[0].PriceMicros != quant.ToPriceMicros(100) {
		t.Errorf("unexpected first fill: %+v", fills[0])
	}
	if fills[1].Datetime != "t2" {
		t.Errorf("Datetime = %q, want t2", fills[1].Datetime)
	}
}

func TestSnapshot_Trades_NullOrMissing(t *testing.T) {
	if got := (Snapshot{"trades": nil}).Trades(); len(got) != 0 {
		t.Errorf("null trades should yield none, got %d", len(got))
	}
	if got := (Snapshot{}).Trades(); len(got) != 0 {
		t.Errorf("missing trades should yield none, got %d", len(got))
	}
}
