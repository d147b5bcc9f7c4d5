// Package gateway provides exchange connectivity: the uniform Gateway
// interface the broker engine consumes, a signed REST client, an
// optional private order-update stream, and a scripted mock for tests
// and paper trading.
package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/yomolify/bt-ccxt-store/internal/domain"
	"github.com/yomolify/bt-ccxt-store/pkg/quant"
)

// CreateResult is the exchange's answer to an order creation. It is not
// trusted as a complete order representation; callers must fetch the
// canonical snapshot by ID afterwards.
type CreateResult struct {
	ID          string
	RawSymbol   string // exchange-native symbol, e.g. "BTCUSDT"
	PriceMicros quant.PriceMicros
}

// BatchRequest is one order inside a batch creation call. Owner is the
// opaque strategy handle carried through so batch responses can be
// matched back to their originator.
type BatchRequest struct {
	Owner       any
	Symbol      string // unified symbol, e.g. "BTC/USDT"
	Side        domain.Side
	OrderType   string
	SizeSats    quant.QtySats
	PriceMicros quant.PriceMicros
	Params      map[string]any
}

// OwnerRef links an exchange-native symbol back to the (owner, symbol)
// pair that originated a batch item.
type OwnerRef struct {
	Owner     any
	Symbol    string
	RawSymbol string
}

// WalletSnapshot is the per-currency free/total balance mapping returned
// by the exchange.
type WalletSnapshot struct {
	Free  map[string]quant.QtySats
	Total map[string]quant.QtySats
}

// Gateway is the uniform exchange surface consumed by the broker engine.
// Every call is a blocking I/O boundary; implementations must honor ctx.
type Gateway interface {
	// FetchOrder returns the canonical snapshot for one order.
	FetchOrder(ctx context.Context, id, symbol string) (domain.Snapshot, error)

	// CreateOrder submits one order. priceMicros 0 means no price
	// (market orders; exchanges commonly reject a price on those).
	CreateOrder(ctx context.Context, symbol, orderType string, side domain.Side,
		sizeSats quant.QtySats, priceMicros quant.PriceMicros, params map[string]any) (CreateResult, error)

	// CreateBatchOrders submits several orders in one call. Results may
	// cover only a subset of requests when the exchange rejects items;
	// refs lets callers match results back by raw symbol.
	CreateBatchOrders(ctx context.Context, reqs []BatchRequest) ([]CreateResult, []OwnerRef, error)

	// CancelOrder requests cancellation and returns the resulting snapshot.
	CancelOrder(ctx context.Context, id, symbol string) (domain.Snapshot, error)

	// FetchOpenOrders lists all open orders known to the exchange.
	FetchOpenOrders(ctx context.Context) ([]domain.Snapshot, error)

	// FetchBalance pulls the account-level cash/value pair.
	FetchBalance(ctx context.Context) (cash, value quant.PriceMicros, err error)

	// FetchWalletBalance queries one currency's free/total balances.
	FetchWalletBalance(ctx context.Context, currency string, params map[string]any) (WalletSnapshot, error)

	// PrivateEndpoint is the escape hatch for non-unified exchange calls.
	PrivateEndpoint(ctx context.Context, method, endpoint string, params map[string]any) (json.RawMessage, error)
}

// RawSymbol converts a unified symbol ("BTC/USDT") to the exchange-native
// form ("BTCUSDT").
func RawSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}
