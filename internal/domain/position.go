package domain

import (
	"github.com/yomolify/bt-ccxt-store/pkg/quant"
	"github.com/yomolify/bt-ccxt-store/pkg/safe"
)

// Position represents the net holding for one instrument.
// All monetary values are strictly int64.
type Position struct {
	Symbol         string
	SizeSats       quant.QtySats
	AvgPriceMicros quant.PriceMicros
}

// IsLong checks if the position is Long.
func (p *Position) IsLong() bool {
	return p.SizeSats > 0
}

// IsShort checks if the position is Short.
func (p *Position) IsShort() bool {
	return p.SizeSats < 0
}

// Update applies a signed size delta executed at price. Rules:
// opening from flat takes the execution price; adding in the same
// direction blends a volume-weighted average; reducing keeps the entry
// price; crossing through zero re-opens at the execution price.
func (p *Position) Update(deltaSats quant.QtySats, priceMicros quant.PriceMicros) {
	oldSize := int64(p.SizeSats)
	newSize := safe.Add(oldSize, int64(deltaSats))

	switch {
	case oldSize == 0:
		p.AvgPriceMicros = priceMicros
	case newSize == 0:
		p.AvgPriceMicros = 0
	case (oldSize > 0) != (newSize > 0):
		// Flipped direction: the surviving exposure was opened now.
		p.AvgPriceMicros = priceMicros
	case abs(newSize) > abs(oldSize):
		// Increased exposure: weighted average of old and new.
		oldNotional := safe.Div(safe.Mul(int64(p.AvgPriceMicros), abs(oldSize)), quant.QtyScale)
		addNotional := safe.Div(safe.Mul(int64(priceMicros), abs(int64(deltaSats))), quant.QtyScale)
		p.AvgPriceMicros = quant.PriceMicros(safe.Div(safe.Mul(safe.Add(oldNotional, addNotional), quant.QtyScale), abs(newSize)))
	default:
		// Reduced exposure: entry price unchanged.
	}

	p.SizeSats = quant.QtySats(newSize)
}

// Clone returns an independent copy for untrusted callers.
func (p *Position) Clone() *Position {
	c := *p
	return &c
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
