package quant

import (
	"github.com/shopspring/decimal"
)

// ParsePriceMicros parses a string decimal (e.g. "123.45") to PriceMicros.
// Decimal arithmetic keeps exchange-reported prices exact; extra precision
// beyond 6 places is truncated toward zero.
func ParsePriceMicros(s string) (PriceMicros, error) {
	v, err := parseScaled(s, 6)
	return PriceMicros(v), err
}

// ParseQtySats parses a string decimal (e.g. "0.00123") to QtySats.
func ParseQtySats(s string) (QtySats, error) {
	v, err := parseScaled(s, 8)
	return QtySats(v), err
}

func parseScaled(s string, decimals int32) (int64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Shift(decimals).IntPart(), nil
}
