package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yomolify/bt-ccxt-store/internal/domain"
	"github.com/yomolify/bt-ccxt-store/internal/infra"
	"github.com/yomolify/bt-ccxt-store/pkg/quant"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &infra.Config{}
	cfg.Gateway.RestURL = server.URL
	cfg.Gateway.AccessKey = "key"
	cfg.Gateway.SecretKey = "secret"
	cfg.Gateway.RateLimitPerSec = 1000
	cfg.Gateway.Burst = 100
	cfg.Trading.Currency = "USDT"

	return NewClient(cfg)
}

func TestClient_FetchOrder(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/order" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("id") != "42" || r.URL.Query().Get("symbol") != "BTC/USDT" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("ACCESS-KEY") != "key" {
			t.Error("request not signed")
		}
		w.Write([]byte(`{"id":"42","status":"open","side":"buy","amount":1.0,"price":100.5,
			"trades":[{"id":"f1","datetime":"t1","amount":0.5,"price":100}]}`))
	})

	snap, err := c.FetchOrder(context.Background(), "42", "BTC/USDT")
	if err != nil {
		t.Fatalf("FetchOrder: %v", err)
	}
	if snap.Str("status") != "open" {
		t.Errorf("status = %q, want open", snap.Str("status"))
	}
	if fills := snap.Trades(); len(fills) != 1 || fills[0].ID != "f1" {
		t.Errorf("unexpected trades: %+v", fills)
	}
}

func TestClient_CreateOrder(t *testing.T) {
	var gotBody map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/order" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"id":"42","symbol":"BTCUSDT","price":100.5}`))
	})

	res, err := c.CreateOrder(context.Background(), "BTC/USDT", "limit", domain.SideBuy,
		quant.ToQtySats(1.0), quant.ToPriceMicros(100.5), nil)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if res.ID != "42" || res.RawSymbol != "BTCUSDT" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.PriceMicros != quant.ToPriceMicros(100.5) {
		t.Errorf("PriceMicros = %d, want %d", res.PriceMicros, quant.ToPriceMicros(100.5))
	}
	if gotBody["type"] != "limit" || gotBody["side"] != "buy" {
		t.Errorf("unexpected body: %+v", gotBody)
	}
	if gotBody["price"] != 100.5 {
		t.Errorf("price = %v, want 100.5", gotBody["price"])
	}
}

func TestClient_CreateOrder_MarketOmitsPrice(t *testing.T) {
	var gotBody map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"id":"43"}`))
	})

	_, err := c.CreateOrder(context.Background(), "BTC/USDT", "market", domain.SideBuy,
		quant.ToQtySats(1.0), 0, nil)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, present := gotBody["price"]; present {
		t.Error("market order body must not carry a price")
	}
}

func TestClient_CreateBatchOrders(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/order/batch" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		// Exchange accepted only the first item.
		w.Write([]byte(`{"orders":[{"orderId":"10","symbol":"BTCUSDT","price":9511.51}]}`))
	})

	reqs := []BatchRequest{
		{Owner: "a", Symbol: "BTC/USDT", Side: domain.SideBuy, OrderType: "limit", SizeSats: quant.ToQtySats(0.004), PriceMicros: quant.ToPriceMicros(9511.51)},
		{Owner: "b", Symbol: "ETH/USDT", Side: domain.SideBuy, OrderType: "limit", SizeSats: quant.ToQtySats(0.159), PriceMicros: quant.ToPriceMicros(290.68)},
	}

	results, refs, err := c.CreateBatchOrders(context.Background(), reqs)
	if err != nil {
		t.Fatalf("CreateBatchOrders: %v", err)
	}
	if len(results) != 1 || results[0].ID != "10" || results[0].RawSymbol != "BTCUSDT" {
		t.Errorf("unexpected results: %+v", results)
	}
	if len(refs) != 2 || refs[1].RawSymbol != "ETHUSDT" {
		t.Errorf("unexpected refs: %+v", refs)
	}
}

func TestClient_FetchBalance(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/balance" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"free":{"USDT":1000.5},"total":{"USDT":"2000.25"}}`))
	})

	cash, value, err := c.FetchBalance(context.Background())
	if err != nil {
		t.Fatalf("FetchBalance: %v", err)
	}
	if cash != quant.ToPriceMicros(1000.5) {
		t.Errorf("cash = %d, want %d", cash, quant.ToPriceMicros(1000.5))
	}
	if value != quant.ToPriceMicros(2000.25) {
		t.Errorf("value = %d, want %d", value, quant.ToPriceMicros(2000.25))
	}
}

func TestClient_FetchWalletBalance(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("currency") != "BTC" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"free":{"BTC":0.5},"total":{"BTC":1.5}}`))
	})

	ws, err := c.FetchWalletBalance(context.Background(), "BTC", nil)
	if err != nil {
		t.Fatalf("FetchWalletBalance: %v", err)
	}
	if ws.Free["BTC"] != quant.ToQtySats(0.5) || ws.Total["BTC"] != quant.ToQtySats(1.5) {
		t.Errorf("unexpected wallet: %+v", ws)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"order not found"}`, http.StatusNotFound)
	})

	if _, err := c.FetchOrder(context.Background(), "nope", "BTC/USDT"); err == nil {
		t.Fatal("expected error for 404")
	} else if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should carry status code: %v", err)
	}
}

func TestClient_PrivateEndpoint(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/order/42/cancel" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"ok":true}`))
	})

	raw, err := c.PrivateEndpoint(context.Background(), "POST", "order/{42}/cancel", map[string]any{"reason": "test"})
	if err != nil {
		t.Fatalf("PrivateEndpoint: %v", err)
	}
	if !strings.Contains(string(raw), "ok") {
		t.Errorf("unexpected response: %s", raw)
	}
}
