package domain

import (
	"encoding/json"
	"strconv"

	"github.com/yomolify/bt-ccxt-store/pkg/quant"
)

// Snapshot is a point-in-time representation of an order as reported by
// the exchange: a raw JSON object kept opaque so that the configurable
// status mappings can address exchange-specific fields without code
// change. Typed accessors convert at this boundary only.
type Snapshot map[string]any

// Field returns the raw value for key and whether the key exists.
func (s Snapshot) Field(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// Str returns the value for key as a string, or "" if absent.
// Numeric ids (Binance-style int64 order ids) are stringified.
func (s Snapshot) Str(key string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// Price returns the value for key as PriceMicros. The exchange may
// report numbers as JSON floats or as numeric strings; strings are
// parsed as exact decimals rather than round-tripped through float64.
func (s Snapshot) Price(key string) (quant.PriceMicros, bool) {
	v, ok := s[key]
	if !ok || v == nil {
		return 0, false
	}
	if str, ok := stringNumber(v); ok {
		p, err := quant.ParsePriceMicros(str)
		return p, err == nil
	}
	f, ok := floatNumber(v)
	if !ok {
		return 0, false
	}
	return quant.ToPriceMicros(f), true
}

// Qty returns the value for key as QtySats.
func (s Snapshot) Qty(key string) (quant.QtySats, bool) {
	v, ok := s[key]
	if !ok || v == nil {
		return 0, false
	}
	if str, ok := stringNumber(v); ok {
		q, err := quant.ParseQtySats(str)
		return q, err == nil
	}
	f, ok := floatNumber(v)
	if !ok {
		return 0, false
	}
	return quant.ToQtySats(f), true
}

func stringNumber(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		// Empty strings mean "not reported", not zero.
		return t, t != ""
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

func floatNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// Trades extracts the fill list from the snapshot's "trades" field.
// A missing or null trades field yields an empty slice; entries without
// an id are skipped since fill ids drive duplicate suppression.
func (s Snapshot) Trades() []Fill {
	raw, ok := s["trades"]
	if !ok || raw == nil {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	fills := make([]Fill, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		t := Snapshot(m)
		id := t.Str("id")
		if id == "" {
			continue
		}
		qty, _ := t.Qty("amount")
		price, _ := t.Price("price")
		fills = append(fills, Fill{
			ID:          id,
			Datetime:    t.Str("datetime"),
			QtySats:     qty,
			PriceMicros: price,
		})
	}
	return fills
}
