// Package domain holds the broker's core entities: orders, fills,
// positions, balances and the exchange snapshot/mapping vocabulary.
// All monetary values are fixed-point int64 (see pkg/quant).
package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/yomolify/bt-ccxt-store/pkg/quant"
	"github.com/yomolify/bt-ccxt-store/pkg/safe"
)

// Side is the order direction as the exchange reports it.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ExecType is the abstract execution type requested by the caller.
// It is translated to an exchange-specific order-type string via
// OrderTypeTable before submission.
type ExecType int

const (
	ExecMarket ExecType = iota
	ExecLimit
	ExecStop
	ExecStopLimit
)

func (t ExecType) String() string {
	switch t {
	case ExecMarket:
		return "market"
	case ExecLimit:
		return "limit"
	case ExecStop:
		return "stop"
	case ExecStopLimit:
		return "stop_limit"
	default:
		return "unknown"
	}
}

// Status is the order lifecycle state. Submitted and PartiallyFilled are
// open; Closed and Canceled are terminal.
type Status int

const (
	StatusSubmitted Status = iota
	StatusPartiallyFilled
	StatusClosed
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusClosed:
		return "CLOSED"
	case StatusCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCanceled
}

// Fill is one execution reported by the exchange for an order.
type Fill struct {
	ID          string
	Datetime    string
	QtySats     quant.QtySats
	PriceMicros quant.PriceMicros
}

// Order is a live exchange order tracked by the broker. The broker owns
// the order until it goes terminal; after that it is only handed out
// through the notification queue. All mutators are safe for concurrent
// use by reconciliation workers and the caller's submit/cancel path.
type Order struct {
	ID     string
	Owner  any // opaque strategy handle, not owned
	Symbol string
	Side   Side

	// Requested size and price. PriceMicros is 0 for market orders.
	SizeSats     quant.QtySats
	PriceMicros  quant.PriceMicros
	CreatedUnixM int64

	mu            sync.Mutex
	status        Status
	terminalClaim bool
	fills         []Fill
	fillIDs       map[string]struct{}
	filledSats    quant.QtySats
	avgFillMicros quant.PriceMicros
	snapshot      Snapshot
}

// NewOrder builds an Order from the canonical exchange snapshot fetched
// right after creation. Side and size come from the snapshot, matching
// what the exchange accepted rather than what was requested.
func NewOrder(owner any, symbol string, snap Snapshot) (*Order, error) {
	id := snap.Str("id")
	if id == "" {
		return nil, fmt.Errorf("order snapshot has no id")
	}

	side := SideSell
	if snap.Str("side") == string(SideBuy) {
		side = SideBuy
	}

	amount, ok := snap.Qty("amount")
	if !ok {
		return nil, fmt.Errorf("order %s snapshot has no amount", id)
	}

	price, _ := snap.Price("price")

	return &Order{
		ID:           id,
		Owner:        owner,
		Symbol:       symbol,
		Side:         side,
		SizeSats:     amount,
		PriceMicros:  price,
		CreatedUnixM: time.Now().UnixMicro(),
		status:       StatusSubmitted,
		fillIDs:      make(map[string]struct{}),
		snapshot:     snap,
	}, nil
}

// Status returns the current lifecycle state.
func (o *Order) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// IsOpen reports whether the order is still active.
func (o *Order) IsOpen() bool {
	return !o.Status().Terminal()
}

// SetStatus forces the lifecycle state. The registry calls this under its
// own lock so that terminal status and registry removal are observed
// atomically; nothing else should transition an order to terminal.
func (o *Order) SetStatus(s Status) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

// ClaimTerminal atomically claims the right to run the terminal
// transition for this order. Exactly one caller wins; concurrent
// reconciliation tasks that observe the same closed snapshot lose the
// claim and back off without side effects.
func (o *Order) ClaimTerminal() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.terminalClaim || o.status.Terminal() {
		return false
	}
	o.terminalClaim = true
	return true
}

// ApplyFill records one execution. Duplicate fill ids are ignored, so
// re-applying the same exchange snapshot is idempotent. Returns true if
// the fill was new.
func (o *Order) ApplyFill(f Fill) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, seen := o.fillIDs[f.ID]; seen {
		return false
	}
	o.fillIDs[f.ID] = struct{}{}
	o.fills = append(o.fills, f)

	// Volume-weighted average of all executions so far.
	prevNotional := safe.Div(safe.Mul(int64(o.avgFillMicros), int64(o.filledSats)), quant.QtyScale)
	addNotional := safe.Div(safe.Mul(int64(f.PriceMicros), int64(f.QtySats)), quant.QtyScale)
	o.filledSats += f.QtySats
	if o.filledSats != 0 {
		o.avgFillMicros = quant.PriceMicros(safe.Div(safe.Mul(safe.Add(prevNotional, addNotional), quant.QtyScale), int64(o.filledSats)))
	}

	if !o.status.Terminal() && o.filledSats > 0 {
		o.status = StatusPartiallyFilled
	}
	return true
}

// ApplyFills applies every not-yet-known fill and returns how many were new.
func (o *Order) ApplyFills(fills []Fill) int {
	applied := 0
	for _, f := range fills {
		if o.ApplyFill(f) {
			applied++
		}
	}
	return applied
}

// Fills returns a copy of the executions recorded so far, in arrival order.
func (o *Order) Fills() []Fill {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Fill, len(o.fills))
	copy(out, o.fills)
	return out
}

// FilledSats returns the accumulated executed quantity.
func (o *Order) FilledSats() quant.QtySats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filledSats
}

// AvgFillPriceMicros returns the volume-weighted average execution price.
func (o *Order) AvgFillPriceMicros() quant.PriceMicros {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.avgFillMicros
}

// Snapshot returns the last raw exchange snapshot seen for this order.
func (o *Order) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot
}

// UpdateSnapshot stores the latest raw exchange snapshot.
func (o *Order) UpdateSnapshot(snap Snapshot) {
	o.mu.Lock()
	o.snapshot = snap
	o.mu.Unlock()
}
