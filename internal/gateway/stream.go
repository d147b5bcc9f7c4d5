package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yomolify/bt-ccxt-store/internal/infra"
)

// OrderUpdate is a push notification that an order changed on the
// exchange. It carries identity only; the authoritative state is always
// re-fetched over REST.
type OrderUpdate struct {
	ID     string
	Symbol string
}

// OrderStream maintains the private order-update websocket. Updates are
// advisory: they let the reconciler fetch an order sooner than the next
// cadence window, nothing more. Handles reconnection with backoff, read
// timeouts, and thread-safe writes.
type OrderStream struct {
	url      string
	signer   *Signer // nil when the stream needs no auth
	onUpdate func(OrderUpdate)

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	ReadTimeout  time.Duration
	PingInterval time.Duration
}

// NewOrderStream creates a stream worker for the given websocket URL.
func NewOrderStream(url string, signer *Signer, onUpdate func(OrderUpdate)) *OrderStream {
	return &OrderStream{
		url:          url,
		signer:       signer,
		onUpdate:     onUpdate,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Start initiates the connection loop.
func (w *OrderStream) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.runLoop(ctx)
}

// Stop terminates the worker.
func (w *OrderStream) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.close()
	w.wg.Wait()
}

func (w *OrderStream) runLoop(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Order stream panic recovered", slog.Any("panic", r))
		}
	}()

	retry := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Order stream connection failed",
				slog.Any("error", err),
				slog.Int("retry", retry))
			delay := infra.CalculateBackoff(retry)
			retry++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		w.readLoop(ctx)
	}
}

func (w *OrderStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	header := make(http.Header)
	header.Set("User-Agent", infra.UserAgent())

	conn, _, err := dialer.DialContext(ctx, w.url, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	if err := w.login(); err != nil {
		w.close()
		return fmt.Errorf("login failed: %w", err)
	}
	if err := w.subscribe(); err != nil {
		w.close()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	if w.PingInterval > 0 {
		go w.pingLoop(ctx)
	}

	slog.Info("Order stream connected", slog.String("url", w.url))
	return nil
}

func (w *OrderStream) login() error {
	if w.signer == nil {
		return nil
	}
	headers := w.signer.GenerateHeaders("GET", "/ws/auth", "", "")
	msg := map[string]any{"op": "login", "args": []any{headers}}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, raw)
}

func (w *OrderStream) subscribe() error {
	msg := map[string]any{
		"op":   "subscribe",
		"args": []any{map[string]string{"channel": "orders"}},
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, raw)
}

func (w *OrderStream) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.close()
			return
		default:
		}

		w.mu.RLock()
		c := w.conn
		w.mu.RUnlock()
		if c == nil {
			return
		}

		c.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			slog.Warn("Order stream read error", slog.Any("error", err))
			w.close()
			return
		}

		w.handleMessage(msg)
	}
}

func (w *OrderStream) handleMessage(msg []byte) {
	if string(msg) == "pong" {
		return
	}

	var frame struct {
		Channel string `json:"channel"`
		Data    []struct {
			ID     string `json:"id"`
			Symbol string `json:"symbol"`
		} `json:"data"`
	}
	if err := json.Unmarshal(msg, &frame); err != nil {
		slog.Debug("Order stream unparseable frame", slog.String("msg", string(msg)))
		return
	}
	if frame.Channel != "orders" {
		return
	}

	for _, d := range frame.Data {
		if d.ID == "" {
			continue
		}
		w.onUpdate(OrderUpdate{ID: d.ID, Symbol: d.Symbol})
	}
}

func (w *OrderStream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(w.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.RLock()
			c := w.conn
			w.mu.RUnlock()
			if c == nil {
				return
			}
			if err := w.threadSafeWrite(websocket.TextMessage, []byte("ping")); err != nil {
				slog.Warn("Order stream ping failed", slog.Any("error", err))
				return
			}
		}
	}
}

func (w *OrderStream) threadSafeWrite(messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	c := w.conn
	w.mu.RUnlock()
	if c == nil {
		return fmt.Errorf("not connected")
	}
	return c.WriteMessage(messageType, data)
}

func (w *OrderStream) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}
