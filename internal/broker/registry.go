package broker

import (
	"sync"

	"github.com/yomolify/bt-ccxt-store/internal/domain"
)

// Registry is the set of currently open orders. Insertion order is
// preserved for iteration. Invariant: an order is a member iff its
// status is non-terminal; Complete enforces this by setting the terminal
// status and removing the order under one lock, so no observer going
// through the registry sees terminal-while-registered or the reverse.
type Registry struct {
	mu     sync.Mutex
	orders []*domain.Order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers an order as open.
func (r *Registry) Add(o *domain.Order) {
	r.mu.Lock()
	r.orders = append(r.orders, o)
	r.mu.Unlock()
}

// Snapshot returns a copy of the current open set. Orders added after
// the snapshot is taken are not included, so a reconciliation pass never
// scans orders submitted mid-iteration.
func (r *Registry) Snapshot() []*domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Order, len(r.orders))
	copy(out, r.orders)
	return out
}

// Get returns the registered order with the given id, if any.
func (r *Registry) Get(id string) (*domain.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// Contains reports whether the order is registered.
func (r *Registry) Contains(o *domain.Order) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing == o {
			return true
		}
	}
	return false
}

// Len reports the size of the open set.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// Complete atomically marks the order terminal and removes it from the
// open set. Absence is a double removal and yields a ConsistencyError;
// the order's status is left untouched in that case.
func (r *Registry) Complete(o *domain.Order, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.orders {
		if existing == o {
			o.SetStatus(status)
			r.orders = append(r.orders[:i], r.orders[i+1:]...)
			return nil
		}
	}
	return &ConsistencyError{Op: "Complete", OrderID: o.ID}
}
