package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yomolify/bt-ccxt-store/internal/domain"
	"github.com/yomolify/bt-ccxt-store/internal/infra"
	"github.com/yomolify/bt-ccxt-store/pkg/quant"
)

// Compile-time interface check.
var _ Gateway = (*Client)(nil)

// Client is the signed REST implementation of Gateway. Rate limiting and
// a circuit breaker sit in front of every call; order endpoints and
// account endpoints share one limiter since most exchanges meter them
// together.
type Client struct {
	baseURL  string
	currency string
	http     *http.Client
	signer   *Signer
	limiter  *infra.RateLimiter
	breaker  *infra.CircuitBreaker
}

// NewClient creates a REST gateway client from configuration.
func NewClient(cfg *infra.Config) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.Gateway.RestURL, "/"),
		currency: cfg.Trading.Currency,
		http:     &http.Client{Timeout: 30 * time.Second},
		signer:   NewSigner(cfg.Gateway.AccessKey, cfg.Gateway.SecretKey, cfg.Gateway.Passphrase),
		limiter:  infra.NewRateLimiter(cfg.Gateway.Burst, cfg.Gateway.RateLimitPerSec),
		breaker:  infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("gateway")),
	}
}

// Close wipes credentials from memory.
func (c *Client) Close() {
	c.signer.Wipe()
}

// do executes one signed request and returns the raw response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("gateway circuit open: %s %s", method, path)
	}

	var bodyStr string
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(raw)
		reader = bytes.NewReader(raw)
	}

	fullURL := c.baseURL + path
	encodedQuery := query.Encode()
	if encodedQuery != "" {
		fullURL += "?" + encodedQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", infra.UserAgent())
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.signer.GenerateHeaders(method, path, encodedQuery, bodyStr) {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(raw, 256))
	}

	c.breaker.RecordSuccess()
	return raw, nil
}

// FetchOrder returns the canonical snapshot for one order.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string) (domain.Snapshot, error) {
	q := url.Values{"id": {id}, "symbol": {symbol}}
	raw, err := c.do(ctx, http.MethodGet, "/api/v1/order", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(raw)
}

// CreateOrder submits one order and returns the creation result.
func (c *Client) CreateOrder(ctx context.Context, symbol, orderType string, side domain.Side,
	sizeSats quant.QtySats, priceMicros quant.PriceMicros, params map[string]any) (CreateResult, error) {

	body := orderPayload(symbol, orderType, side, sizeSats, priceMicros, params)
	raw, err := c.do(ctx, http.MethodPost, "/api/v1/order", nil, body)
	if err != nil {
		return CreateResult{}, err
	}

	snap, err := decodeSnapshot(raw)
	if err != nil {
		return CreateResult{}, err
	}
	return creationFromSnapshot(snap, symbol)
}

// CreateBatchOrders submits several orders in one call. The refs list is
// built from the requests; results cover only the items the exchange
// accepted.
func (c *Client) CreateBatchOrders(ctx context.Context, reqs []BatchRequest) ([]CreateResult, []OwnerRef, error) {
	refs := make([]OwnerRef, 0, len(reqs))
	items := make([]map[string]any, 0, len(reqs))
	for _, r := range reqs {
		refs = append(refs, OwnerRef{Owner: r.Owner, Symbol: r.Symbol, RawSymbol: RawSymbol(r.Symbol)})
		items = append(items, orderPayload(r.Symbol, r.OrderType, r.Side, r.SizeSats, r.PriceMicros, r.Params))
	}

	raw, err := c.do(ctx, http.MethodPost, "/api/v1/order/batch", nil, map[string]any{"orders": items})
	if err != nil {
		return nil, nil, err
	}

	var resp struct {
		Orders []map[string]any `json:"orders"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, fmt.Errorf("decode batch response: %w", err)
	}

	results := make([]CreateResult, 0, len(resp.Orders))
	for _, item := range resp.Orders {
		snap := domain.Snapshot(item)
		res, err := creationFromSnapshot(snap, "")
		if err != nil {
			return nil, nil, err
		}
		results = append(results, res)
	}
	return results, refs, nil
}

// CancelOrder requests cancellation of one order.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string) (domain.Snapshot, error) {
	q := url.Values{"id": {id}, "symbol": {symbol}}
	raw, err := c.do(ctx, http.MethodDelete, "/api/v1/order", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(raw)
}

// FetchOpenOrders lists all open orders on the exchange.
func (c *Client) FetchOpenOrders(ctx context.Context) ([]domain.Snapshot, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/v1/orders/open", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Orders []map[string]any `json:"orders"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}

	snaps := make([]domain.Snapshot, 0, len(resp.Orders))
	for _, item := range resp.Orders {
		snaps = append(snaps, domain.Snapshot(item))
	}
	return snaps, nil
}

// FetchBalance pulls the account cash/value pair in the configured
// account currency.
func (c *Client) FetchBalance(ctx context.Context) (quant.PriceMicros, quant.PriceMicros, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/v1/balance", nil, nil)
	if err != nil {
		return 0, 0, err
	}

	var resp struct {
		Free  map[string]any `json:"free"`
		Total map[string]any `json:"total"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, 0, fmt.Errorf("decode balance: %w", err)
	}

	cash, _ := domain.Snapshot(resp.Free).Price(c.currency)
	value, _ := domain.Snapshot(resp.Total).Price(c.currency)
	return cash, value, nil
}

// FetchWalletBalance queries one currency's free/total balances.
func (c *Client) FetchWalletBalance(ctx context.Context, currency string, params map[string]any) (WalletSnapshot, error) {
	q := url.Values{"currency": {currency}}
	for k, v := range params {
		q.Set(k, fmt.Sprintf("%v", v))
	}

	raw, err := c.do(ctx, http.MethodGet, "/api/v1/wallet", q, nil)
	if err != nil {
		return WalletSnapshot{}, err
	}

	var resp struct {
		Free  map[string]any `json:"free"`
		Total map[string]any `json:"total"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return WalletSnapshot{}, fmt.Errorf("decode wallet balance: %w", err)
	}

	ws := WalletSnapshot{
		Free:  make(map[string]quant.QtySats, len(resp.Free)),
		Total: make(map[string]quant.QtySats, len(resp.Total)),
	}
	for cur := range resp.Free {
		if v, ok := domain.Snapshot(resp.Free).Qty(cur); ok {
			ws.Free[cur] = v
		}
	}
	for cur := range resp.Total {
		if v, ok := domain.Snapshot(resp.Total).Qty(cur); ok {
			ws.Total[cur] = v
		}
	}
	return ws, nil
}

// PrivateEndpoint sends a request to any non-unified exchange endpoint
// and returns the raw JSON response unparsed.
func (c *Client) PrivateEndpoint(ctx context.Context, method, endpoint string, params map[string]any) (json.RawMessage, error) {
	path := normalizeEndpoint(endpoint)

	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodDelete:
		q := url.Values{}
		for k, v := range params {
			q.Set(k, fmt.Sprintf("%v", v))
		}
		return c.do(ctx, strings.ToUpper(method), path, q, nil)
	default:
		return c.do(ctx, strings.ToUpper(method), path, nil, params)
	}
}

// normalizeEndpoint strips the path-parameter braces some exchange docs
// use ("order/{id}/cancel") and guarantees a leading slash.
func normalizeEndpoint(endpoint string) string {
	p := strings.ReplaceAll(endpoint, "{", "")
	p = strings.ReplaceAll(p, "}", "")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func orderPayload(symbol, orderType string, side domain.Side,
	sizeSats quant.QtySats, priceMicros quant.PriceMicros, params map[string]any) map[string]any {

	body := map[string]any{
		"symbol": symbol,
		"type":   orderType,
		"side":   string(side),
		"amount": sizeSats.Float64(),
	}
	if priceMicros != 0 {
		body["price"] = priceMicros.Float64()
	}
	if len(params) > 0 {
		body["params"] = params
	}
	return body
}

func creationFromSnapshot(snap domain.Snapshot, fallbackSymbol string) (CreateResult, error) {
	id := snap.Str("id")
	if id == "" {
		id = snap.Str("orderId")
	}
	if id == "" {
		return CreateResult{}, fmt.Errorf("creation response has no id")
	}

	rawSym := snap.Str("symbol")
	if rawSym == "" {
		rawSym = RawSymbol(fallbackSymbol)
	}

	price, _ := snap.Price("price")
	return CreateResult{ID: id, RawSymbol: RawSymbol(rawSym), PriceMicros: price}, nil
}

func decodeSnapshot(raw json.RawMessage) (domain.Snapshot, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return domain.Snapshot(m), nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
