// Package broker implements the order lifecycle engine: submission,
// cancellation, periodic reconciliation against the exchange, the open
// order registry, the position ledger and the notification queue.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yomolify/bt-ccxt-store/internal/domain"
	"github.com/yomolify/bt-ccxt-store/internal/gateway"
	"github.com/yomolify/bt-ccxt-store/internal/storage"
	"github.com/yomolify/bt-ccxt-store/pkg/quant"
)

// Options carries the injected collaborators and policy tables for the
// engine. Zero-value fields fall back to sensible defaults; Journal is
// optional and nil disables auditing.
type Options struct {
	Mappings   domain.StatusMappings
	OrderTypes domain.OrderTypeTable
	Journal    *storage.Journal
	Currency   string
}

// Engine is the broker core. It owns the open-order registry, the
// position ledger, the notification queue and the cached account
// balance. All exchange I/O goes through the injected Gateway.
type Engine struct {
	log      *slog.Logger
	gw       gateway.Gateway
	journal  *storage.Journal
	currency string

	mappings   domain.StatusMappings
	orderTypes domain.OrderTypeTable

	registry *Registry
	notifier *Notifier
	ledger   *Ledger

	balMu         sync.Mutex
	cashMicros    quant.PriceMicros
	valueMicros   quant.PriceMicros
	startCash     quant.PriceMicros
	startValue    quant.PriceMicros
	balCaptured   bool
}

// NewEngine wires an engine around a gateway. The caller decides which
// gateway (real or mock) and which mapping tables apply; nothing is
// discovered via global registration.
func NewEngine(log *slog.Logger, gw gateway.Gateway, opts Options) *Engine {
	if opts.Mappings.ClosedOrder.Key == "" {
		opts.Mappings = domain.DefaultStatusMappings()
	}
	if opts.OrderTypes == nil {
		opts.OrderTypes = domain.DefaultOrderTypes()
	}
	if opts.Currency == "" {
		opts.Currency = "USDT"
	}
	return &Engine{
		log:        log,
		gw:         gw,
		journal:    opts.Journal,
		currency:   opts.Currency,
		mappings:   opts.Mappings,
		orderTypes: opts.OrderTypes,
		registry:   NewRegistry(),
		notifier:   NewNotifier(),
		ledger:     NewLedger(),
	}
}

// Start performs the initial balance pull so the session's starting
// cash and value are captured before any order flow.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.RefreshBalance(ctx); err != nil {
		return fmt.Errorf("initial balance fetch: %w", err)
	}
	e.log.Info("broker engine started",
		slog.String("cash", e.Cash().String()),
		slog.String("value", e.Value().String()),
	)
	return nil
}

// Buy submits a buy order and registers it for reconciliation.
func (e *Engine) Buy(ctx context.Context, owner any, symbol string, exec domain.ExecType,
	sizeSats quant.QtySats, priceMicros quant.PriceMicros, params map[string]any) (*domain.Order, error) {
	return e.submit(ctx, owner, symbol, domain.SideBuy, exec, sizeSats, priceMicros, params)
}

// Sell submits a sell order and registers it for reconciliation.
func (e *Engine) Sell(ctx context.Context, owner any, symbol string, exec domain.ExecType,
	sizeSats quant.QtySats, priceMicros quant.PriceMicros, params map[string]any) (*domain.Order, error) {
	return e.submit(ctx, owner, symbol, domain.SideSell, exec, sizeSats, priceMicros, params)
}

func (e *Engine) submit(ctx context.Context, owner any, symbol string, side domain.Side, exec domain.ExecType,
	sizeSats quant.QtySats, priceMicros quant.PriceMicros, params map[string]any) (*domain.Order, error) {

	orderType, wirePrice, params := e.prepareRequest(exec, priceMicros, params)

	res, err := e.gw.CreateOrder(ctx, symbol, orderType, side, sizeSats, wirePrice, params)
	if err != nil {
		return nil, fmt.Errorf("create order %s %s: %w", side, symbol, err)
	}

	return e.adopt(ctx, owner, symbol, res.ID)
}

// SubmitBatch submits several orders in one exchange call. Items the
// exchange rejects are skipped; accepted items are adopted and
// registered individually, so one bad request never sinks the batch.
func (e *Engine) SubmitBatch(ctx context.Context, reqs []BatchItem) ([]*domain.Order, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	wire := make([]gateway.BatchRequest, 0, len(reqs))
	for _, r := range reqs {
		orderType, wirePrice, params := e.prepareRequest(r.ExecType, r.PriceMicros, r.Params)
		wire = append(wire, gateway.BatchRequest{
			Owner:       r.Owner,
			Symbol:      r.Symbol,
			Side:        r.Side,
			OrderType:   orderType,
			SizeSats:    r.SizeSats,
			PriceMicros: wirePrice,
			Params:      params,
		})
	}

	results, refs, err := e.gw.CreateBatchOrders(ctx, wire)
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	// Results carry only the exchange-native symbol; match each one back
	// to the first unclaimed request with the same raw symbol.
	claimed := make([]bool, len(refs))
	var orders []*domain.Order
	for _, res := range results {
		owner, symbol, ok := claimRef(refs, claimed, res.RawSymbol)
		if !ok {
			e.log.Warn("batch result with no matching request",
				slog.String("id", res.ID),
				slog.String("raw_symbol", res.RawSymbol))
			continue
		}

		o, err := e.adopt(ctx, owner, symbol, res.ID)
		if err != nil {
			e.log.Error("failed to adopt batch order",
				slog.String("id", res.ID),
				slog.Any("error", err))
			continue
		}
		orders = append(orders, o)
	}

	if len(orders) < len(reqs) {
		e.log.Warn("batch partially accepted",
			slog.Int("requested", len(reqs)),
			slog.Int("accepted", len(orders)))
	}
	return orders, nil
}

// BatchItem is one order inside a batch submission.
type BatchItem struct {
	Owner       any
	Symbol      string
	Side        domain.Side
	ExecType    domain.ExecType
	SizeSats    quant.QtySats
	PriceMicros quant.PriceMicros
	Params      map[string]any
}

// prepareRequest resolves the exchange order-type string and decides
// what goes on the wire: the stop-market trigger travels in params, and
// market and stop-market orders carry no price at all. Stop-limit
// callers supply their own trigger through params, since limit price
// and trigger price differ.
func (e *Engine) prepareRequest(exec domain.ExecType, priceMicros quant.PriceMicros,
	params map[string]any) (string, quant.PriceMicros, map[string]any) {

	orderType := e.orderTypes.Resolve(exec)

	if exec == domain.ExecStop {
		out := make(map[string]any, len(params)+1)
		for k, v := range params {
			out[k] = v
		}
		out["stopPrice"] = priceMicros.Float64()
		params = out
	}

	wirePrice := priceMicros
	if exec == domain.ExecMarket || exec == domain.ExecStop {
		wirePrice = 0
	}
	return orderType, wirePrice, params
}

// adopt fetches the canonical snapshot for a freshly created order,
// builds the Order from it and registers it. The creation response is
// never trusted as a full order representation.
func (e *Engine) adopt(ctx context.Context, owner any, symbol, id string) (*domain.Order, error) {
	snap, err := e.gw.FetchOrder(ctx, id, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch canonical order %s: %w", id, err)
	}

	o, err := domain.NewOrder(owner, symbol, snap)
	if err != nil {
		return nil, fmt.Errorf("adopt order %s: %w", id, err)
	}

	e.registry.Add(o)
	e.notifier.Push(o)
	e.journalEvent(ctx, o, storage.EventSubmitted, nil)

	e.log.Info("order submitted",
		slog.String("id", o.ID),
		slog.String("symbol", o.Symbol),
		slog.String("side", string(o.Side)),
		slog.String("size", o.SizeSats.String()),
		slog.String("price", o.PriceMicros.String()),
	)
	return o, nil
}

func claimRef(refs []gateway.OwnerRef, claimed []bool, rawSymbol string) (any, string, bool) {
	for i, ref := range refs {
		if !claimed[i] && ref.RawSymbol == rawSymbol {
			claimed[i] = true
			return ref.Owner, ref.Symbol, true
		}
	}
	return nil, "", false
}

// Cancel requests cancellation of an open order. The exchange is asked
// for the current snapshot first: an order that already closed cannot
// be canceled, so the request is dropped and reconciliation will
// deliver the close. Otherwise the cancel is sent and the order goes
// terminal locally without waiting for the next reconciliation pass.
// A local cancel never touches the position ledger.
func (e *Engine) Cancel(ctx context.Context, o *domain.Order) (bool, error) {
	snap, err := e.gw.FetchOrder(ctx, o.ID, o.Symbol)
	if err != nil {
		return false, fmt.Errorf("pre-cancel fetch %s: %w", o.ID, err)
	}
	o.UpdateSnapshot(snap)

	if matched, ok := e.mappings.ClosedOrder.Matches(snap); ok && matched {
		e.log.Info("cancel skipped, order already closed", slog.String("id", o.ID))
		return false, nil
	}

	if _, err := e.gw.CancelOrder(ctx, o.ID, o.Symbol); err != nil {
		return false, fmt.Errorf("cancel order %s: %w", o.ID, err)
	}

	if err := e.finalize(ctx, o, domain.StatusCanceled, false); err != nil {
		return false, err
	}
	return true, nil
}

// Reconcile fetches the latest snapshot for one open order, records any
// new fills and drives the terminal transition when the configured
// mapping rules recognize a closed or canceled outcome. Closed wins
// when a snapshot somehow matches both rules.
func (e *Engine) Reconcile(ctx context.Context, o *domain.Order) error {
	if !o.IsOpen() {
		return nil
	}

	snap, err := e.gw.FetchOrder(ctx, o.ID, o.Symbol)
	if err != nil {
		// Transient exchange trouble; the order stays open and the next
		// pass retries.
		e.log.Warn("reconcile fetch failed",
			slog.String("id", o.ID),
			slog.Any("error", err))
		return err
	}
	o.UpdateSnapshot(snap)

	// Fills are journaled as they arrive, but the queue only carries
	// terminal transitions.
	if applied := o.ApplyFills(snap.Trades()); applied > 0 {
		e.journalEvent(ctx, o, storage.EventFill, map[string]any{"new_fills": applied})
	}

	closed, closedOK := e.mappings.ClosedOrder.Matches(snap)
	canceled, canceledOK := e.mappings.CanceledOrder.Matches(snap)
	if !closedOK && !canceledOK {
		e.log.Warn("snapshot matches no mapping key, treating as open",
			slog.String("id", o.ID),
			slog.String("closed_key", e.mappings.ClosedOrder.Key),
			slog.String("canceled_key", e.mappings.CanceledOrder.Key))
		return nil
	}

	if closed {
		return e.finalize(ctx, o, domain.StatusClosed, true)
	} else if canceled {
		return e.finalize(ctx, o, domain.StatusCanceled, true)
	}
	return nil
}

// finalize runs the terminal transition exactly once per order: ledger
// update (when the outcome affects positions), atomic status set plus
// registry removal, notification, audit record and a balance refresh.
// Losing the terminal claim means another path already finalized; back
// off without side effects.
func (e *Engine) finalize(ctx context.Context, o *domain.Order, status domain.Status, updateLedger bool) error {
	if !o.ClaimTerminal() {
		return nil
	}

	if updateLedger {
		delta := o.SizeSats
		if o.Side == domain.SideSell {
			delta = -delta
		}
		e.ledger.Update(o.Symbol, delta, o.PriceMicros)
	}

	if err := e.registry.Complete(o, status); err != nil {
		e.log.Error("registry completion failed", slog.Any("error", err))
		return err
	}

	e.notifier.Push(o)

	event := storage.EventClosed
	if status == domain.StatusCanceled {
		event = storage.EventCanceled
	}
	e.journalEvent(ctx, o, event, nil)

	e.log.Info("order finalized",
		slog.String("id", o.ID),
		slog.String("symbol", o.Symbol),
		slog.String("status", status.String()),
		slog.String("filled", o.FilledSats().String()),
	)

	if err := e.RefreshBalance(ctx); err != nil {
		e.log.Warn("post-finalize balance refresh failed", slog.Any("error", err))
	}
	return nil
}

// RefreshBalance pulls cash and account value from the exchange into
// the local cache. The first successful pull is remembered as the
// session's starting balance.
func (e *Engine) RefreshBalance(ctx context.Context) error {
	cash, value, err := e.gw.FetchBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}

	e.balMu.Lock()
	e.cashMicros = cash
	e.valueMicros = value
	if !e.balCaptured {
		e.startCash = cash
		e.startValue = value
		e.balCaptured = true
	}
	e.balMu.Unlock()
	return nil
}

// Cash returns the cached cash balance. No network round trip.
func (e *Engine) Cash() quant.PriceMicros {
	e.balMu.Lock()
	defer e.balMu.Unlock()
	return e.cashMicros
}

// Value returns the cached account value. No network round trip.
func (e *Engine) Value() quant.PriceMicros {
	e.balMu.Lock()
	defer e.balMu.Unlock()
	return e.valueMicros
}

// StartingCash returns the cash balance captured at session start.
func (e *Engine) StartingCash() quant.PriceMicros {
	e.balMu.Lock()
	defer e.balMu.Unlock()
	return e.startCash
}

// StartingValue returns the account value captured at session start.
func (e *Engine) StartingValue() quant.PriceMicros {
	e.balMu.Lock()
	defer e.balMu.Unlock()
	return e.startValue
}

// WalletBalance queries one currency's free/total coin amounts.
// Currencies the exchange does not report come back as zero.
func (e *Engine) WalletBalance(ctx context.Context, currency string, params map[string]any) (domain.WalletBalance, error) {
	snap, err := e.gw.FetchWalletBalance(ctx, currency, params)
	if err != nil {
		return domain.WalletBalance{}, fmt.Errorf("fetch wallet balance: %w", err)
	}
	return domain.WalletBalance{
		FreeSats:  snap.Free[currency],
		TotalSats: snap.Total[currency],
	}, nil
}

// Position returns the tracked position for a symbol, lazily created as
// flat. clone selects an independent copy; pass false only when the
// caller just reads and drops it.
func (e *Engine) Position(symbol string, clone bool) *domain.Position {
	return e.ledger.Get(symbol, clone)
}

// Poll dequeues the next order notification, if any.
func (e *Engine) Poll() (*domain.Order, bool) {
	return e.notifier.Poll()
}

// PendingNotifications reports the notification queue depth.
func (e *Engine) PendingNotifications() int {
	return e.notifier.Len()
}

// OpenOrders returns the engine's view of currently open orders.
func (e *Engine) OpenOrders() []*domain.Order {
	return e.registry.Snapshot()
}

// ExchangeOpenOrders asks the exchange directly for its open order set.
func (e *Engine) ExchangeOpenOrders(ctx context.Context) ([]domain.Snapshot, error) {
	return e.gw.FetchOpenOrders(ctx)
}

// PrivateEndpoint forwards a raw call to a non-unified exchange endpoint.
func (e *Engine) PrivateEndpoint(ctx context.Context, method, endpoint string, params map[string]any) (json.RawMessage, error) {
	return e.gw.PrivateEndpoint(ctx, method, endpoint, params)
}

// Order looks up an open order by exchange id.
func (e *Engine) Order(id string) (*domain.Order, bool) {
	return e.registry.Get(id)
}

func (e *Engine) journalEvent(ctx context.Context, o *domain.Order, event string, payload any) {
	if e.journal == nil {
		return
	}
	ev := storage.OrderEvent{
		OrderID: o.ID,
		Symbol:  o.Symbol,
		Event:   event,
		TsUnixM: time.Now().UnixMicro(),
		Payload: payload,
	}
	if err := e.journal.Append(ctx, ev); err != nil {
		// Audit is best effort; trading flow continues.
		e.log.Warn("journal append failed",
			slog.String("id", o.ID),
			slog.String("event", event),
			slog.Any("error", err))
	}
}
