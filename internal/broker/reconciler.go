package broker

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/yomolify/bt-ccxt-store/internal/domain"
)

// Reconciler drives the periodic exchange polling loop. It wakes every
// second, and when the wall-clock second lands on the configured
// cadence it dispatches every open order to a fixed pool of workers
// through a bounded queue. At most one fetch is ever outstanding per
// order: an order already queued or being reconciled is skipped until
// that fetch completes.
type Reconciler struct {
	log     *slog.Logger
	engine  *Engine
	cadence int
	workers int

	queue chan *domain.Order

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewReconciler builds a reconciler over an engine. cadence is in
// seconds; workers and queueSize bound the concurrent fetch load.
func NewReconciler(log *slog.Logger, engine *Engine, cadence, workers, queueSize int) *Reconciler {
	if cadence <= 0 {
		cadence = 30
	}
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Reconciler{
		log:      log,
		engine:   engine,
		cadence:  cadence,
		workers:  workers,
		queue:    make(chan *domain.Order, queueSize),
		inflight: make(map[string]struct{}),
	}
}

// Run blocks until ctx is canceled, operating the worker pool and the
// cadence loop.
func (r *Reconciler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx)
		}()
	}

	r.log.Info("reconciler started",
		slog.Int("cadence_sec", r.cadence),
		slog.Int("workers", r.workers),
		slog.Int("queue_size", cap(r.queue)),
	)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case now := <-ticker.C:
			if now.Second()%r.cadence != 0 {
				continue
			}
			r.sweep()
			// Step past the firing second so one cadence boundary
			// triggers exactly one sweep.
			select {
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
}

// sweep dispatches every currently open order to the worker pool.
func (r *Reconciler) sweep() {
	orders := r.engine.OpenOrders()
	if len(orders) == 0 {
		return
	}

	dispatched := 0
	for _, o := range orders {
		if r.dispatch(o) {
			dispatched++
		}
	}
	r.log.Debug("reconciliation sweep",
		slog.Int("open", len(orders)),
		slog.Int("dispatched", dispatched),
	)
}

// Nudge schedules an immediate reconciliation for one order id, used by
// the private order-update stream. Unknown ids are ignored; the REST
// poll remains authoritative.
func (r *Reconciler) Nudge(id string) {
	o, ok := r.engine.Order(id)
	if !ok {
		return
	}
	r.dispatch(o)
}

// dispatch enqueues an order unless a fetch for it is already pending.
// A full queue drops the order for this cycle; the next sweep retries.
func (r *Reconciler) dispatch(o *domain.Order) bool {
	r.mu.Lock()
	if _, busy := r.inflight[o.ID]; busy {
		r.mu.Unlock()
		return false
	}
	r.inflight[o.ID] = struct{}{}
	r.mu.Unlock()

	select {
	case r.queue <- o:
		return true
	default:
		r.release(o.ID)
		r.log.Warn("reconcile queue full, deferring order", slog.String("id", o.ID))
		return false
	}
}

func (r *Reconciler) release(id string) {
	r.mu.Lock()
	delete(r.inflight, id)
	r.mu.Unlock()
}

func (r *Reconciler) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-r.queue:
			r.reconcileOne(ctx, o)
		}
	}
}

// reconcileOne runs one reconciliation task, isolating panics so a bug
// in one order's handling never takes down the pool.
func (r *Reconciler) reconcileOne(ctx context.Context, o *domain.Order) {
	defer r.release(o.ID)
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in reconciliation task",
				slog.String("id", o.ID),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if err := r.engine.Reconcile(ctx, o); err != nil {
		r.log.Warn("reconciliation failed",
			slog.String("id", o.ID),
			slog.Any("error", err))
	}
}
