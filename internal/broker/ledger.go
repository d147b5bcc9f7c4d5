package broker

import (
	"sync"

	"github.com/yomolify/bt-ccxt-store/internal/domain"
	"github.com/yomolify/bt-ccxt-store/pkg/quant"
)

// Ledger is the per-instrument position store. Positions are created
// lazily as zero positions on first access. The ledger owns every entry;
// external callers should ask for a clone.
type Ledger struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{positions: make(map[string]*domain.Position)}
}

// Get returns the position for a symbol, creating a zero position if
// absent. clone=true returns an independent copy for untrusted callers;
// clone=false hands out the live entry for trusted internal use.
func (l *Ledger) Get(symbol string, clone bool) *domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := l.getLocked(symbol)
	if clone {
		return pos.Clone()
	}
	return pos
}

// Update applies a signed size delta at a price to the symbol's position.
func (l *Ledger) Update(symbol string, deltaSats quant.QtySats, priceMicros quant.PriceMicros) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.getLocked(symbol).Update(deltaSats, priceMicros)
}

func (l *Ledger) getLocked(symbol string) *domain.Position {
	pos, ok := l.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol}
		l.positions[symbol] = pos
	}
	return pos
}
