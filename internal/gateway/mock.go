package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yomolify/bt-ccxt-store/internal/domain"
	"github.com/yomolify/bt-ccxt-store/pkg/quant"
)

// Compile-time interface check.
var _ Gateway = (*MockGateway)(nil)

// MockGateway is a scripted in-memory Gateway used for paper trading and
// tests. Created orders stay open until a test (or script) queues a
// snapshot that says otherwise; per-order snapshot queues let tests walk
// an order through its lifecycle fetch by fetch.
type MockGateway struct {
	mu     sync.Mutex
	nextID int

	snapshots  map[string][]domain.Snapshot // per order id, consumed FIFO; last entry is sticky
	createErrs map[string]error             // per unified symbol
	fetchErrs  map[string]error             // per order id
	cancelErr  error
	balanceErr error

	cash   quant.PriceMicros
	value  quant.PriceMicros
	wallet WalletSnapshot

	cancelCalls  map[string]int
	balanceCalls int
}

// NewMockGateway creates an empty mock.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		nextID:      41, // first assigned id is "42"
		snapshots:   make(map[string][]domain.Snapshot),
		createErrs:  make(map[string]error),
		fetchErrs:   make(map[string]error),
		cancelCalls: make(map[string]int),
		wallet: WalletSnapshot{
			Free:  make(map[string]quant.QtySats),
			Total: make(map[string]quant.QtySats),
		},
	}
}

// QueueSnapshot appends snapshots to an order's fetch queue.
func (m *MockGateway) QueueSnapshot(id string, snaps ...domain.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[id] = append(m.snapshots[id], snaps...)
}

// FailCreate scripts CreateOrder (and the matching batch item) to fail
// for one unified symbol.
func (m *MockGateway) FailCreate(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErrs[symbol] = err
}

// FailFetch scripts FetchOrder to fail for one order id.
func (m *MockGateway) FailFetch(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErrs[id] = err
}

// SetBalance scripts the account balance returned by FetchBalance.
func (m *MockGateway) SetBalance(cash, value quant.PriceMicros) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cash, m.value = cash, value
}

// SetWallet scripts one currency's wallet balance.
func (m *MockGateway) SetWallet(currency string, free, total quant.QtySats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallet.Free[currency] = free
	m.wallet.Total[currency] = total
}

// CancelCalls reports how many times CancelOrder ran for an order id.
func (m *MockGateway) CancelCalls(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelCalls[id]
}

// BalanceCalls reports how many times FetchBalance ran.
func (m *MockGateway) BalanceCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceCalls
}

// FetchOrder pops the next queued snapshot for the order; the final
// queued snapshot is sticky so repeated fetches keep observing it.
func (m *MockGateway) FetchOrder(_ context.Context, id, _ string) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fetchErrs[id]; err != nil {
		return nil, err
	}

	queue := m.snapshots[id]
	if len(queue) == 0 {
		return nil, fmt.Errorf("mock: no snapshot for order %s", id)
	}
	snap := queue[0]
	if len(queue) > 1 {
		m.snapshots[id] = queue[1:]
	}
	return snap, nil
}

// CreateOrder assigns a sequential id and seeds an open snapshot.
func (m *MockGateway) CreateOrder(_ context.Context, symbol, orderType string, side domain.Side,
	sizeSats quant.QtySats, priceMicros quant.PriceMicros, params map[string]any) (CreateResult, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(symbol, orderType, side, sizeSats, priceMicros)
}

func (m *MockGateway) createLocked(symbol, orderType string, side domain.Side,
	sizeSats quant.QtySats, priceMicros quant.PriceMicros) (CreateResult, error) {

	if err := m.createErrs[symbol]; err != nil {
		return CreateResult{}, err
	}

	m.nextID++
	id := fmt.Sprintf("%d", m.nextID)

	if len(m.snapshots[id]) == 0 {
		m.snapshots[id] = []domain.Snapshot{{
			"id":     id,
			"status": "open",
			"symbol": RawSymbol(symbol),
			"side":   string(side),
			"amount": sizeSats.Float64(),
			"price":  priceMicros.Float64(),
		}}
	}

	slog.Info("MOCK GATEWAY: Create Order",
		slog.String("id", id),
		slog.String("symbol", symbol),
		slog.String("type", orderType),
		slog.String("side", string(side)),
		slog.String("amount", sizeSats.String()),
	)

	return CreateResult{ID: id, RawSymbol: RawSymbol(symbol), PriceMicros: priceMicros}, nil
}

// CreateBatchOrders creates each item independently; scripted failures
// drop that item from the results, mimicking exchanges that accept the
// rest of the batch.
func (m *MockGateway) CreateBatchOrders(_ context.Context, reqs []BatchRequest) ([]CreateResult, []OwnerRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]CreateResult, 0, len(reqs))
	refs := make([]OwnerRef, 0, len(reqs))
	for _, r := range reqs {
		refs = append(refs, OwnerRef{Owner: r.Owner, Symbol: r.Symbol, RawSymbol: RawSymbol(r.Symbol)})

		res, err := m.createLocked(r.Symbol, r.OrderType, r.Side, r.SizeSats, r.PriceMicros)
		if err != nil {
			slog.Warn("MOCK GATEWAY: batch item rejected",
				slog.String("symbol", r.Symbol),
				slog.Any("error", err))
			continue
		}
		results = append(results, res)
	}
	return results, refs, nil
}

// CancelOrder records the call and returns a canceled snapshot.
func (m *MockGateway) CancelOrder(_ context.Context, id, symbol string) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelCalls[id]++
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}

	snap := domain.Snapshot{"id": id, "status": "canceled", "symbol": RawSymbol(symbol)}
	m.snapshots[id] = []domain.Snapshot{snap}
	return snap, nil
}

// FetchOpenOrders returns every order whose sticky snapshot is open.
func (m *MockGateway) FetchOpenOrders(_ context.Context) ([]domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Snapshot
	for _, queue := range m.snapshots {
		last := queue[len(queue)-1]
		if last.Str("status") == "open" {
			out = append(out, last)
		}
	}
	return out, nil
}

// FetchBalance returns the scripted balance and counts the pull.
func (m *MockGateway) FetchBalance(_ context.Context) (quant.PriceMicros, quant.PriceMicros, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balanceCalls++
	if m.balanceErr != nil {
		return 0, 0, m.balanceErr
	}
	return m.cash, m.value, nil
}

// FetchWalletBalance returns the scripted wallet snapshot.
func (m *MockGateway) FetchWalletBalance(_ context.Context, _ string, _ map[string]any) (WalletSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallet, nil
}

// PrivateEndpoint answers every call with an empty object.
func (m *MockGateway) PrivateEndpoint(_ context.Context, method, endpoint string, _ map[string]any) (json.RawMessage, error) {
	slog.Info("MOCK GATEWAY: private endpoint",
		slog.String("method", method),
		slog.String("endpoint", endpoint))
	return json.RawMessage(`{}`), nil
}
