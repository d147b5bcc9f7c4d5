package broker

import (
	"sync"

	"github.com/yomolify/bt-ccxt-store/internal/domain"
)

// Notifier is the unbounded FIFO queue carrying order-state-change
// events to the execution engine. Push never blocks; Poll never blocks.
// No capacity bound: the consumer is expected to drain promptly.
type Notifier struct {
	mu    sync.Mutex
	queue []*domain.Order
}

// NewNotifier creates an empty queue.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Push enqueues one order event.
func (n *Notifier) Push(o *domain.Order) {
	n.mu.Lock()
	n.queue = append(n.queue, o)
	n.mu.Unlock()
}

// Poll returns the next order, or (nil, false) when the queue is empty.
func (n *Notifier) Poll() (*domain.Order, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.queue) == 0 {
		return nil, false
	}
	o := n.queue[0]
	n.queue = n.queue[1:]
	return o, true
}

// Len reports the number of pending notifications.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}
