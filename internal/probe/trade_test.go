package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// tradeServer fakes the accounts/quotes/order endpoints and records the
// calls it sees.
type tradeServer struct {
	mu       sync.Mutex
	calls    []string
	balance  string
	quotes   []map[string]string
	orderID  string
	orderErr int // non-zero: status returned by POST /order
	delErr   int // non-zero: status returned by DELETE /order/{id}
	order    map[string]any
}

func (s *tradeServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		switch {
		case r.URL.Path == "/v1/trade/accounts":
			_ = json.NewEncoder(w).Encode([]map[string]string{
				{"currency": "BTC", "balance": "2"},
				{"currency": "USDT", "balance": s.balance},
			})
		case r.URL.Path == "/v1/quotes":
			_ = json.NewEncoder(w).Encode(s.quotes)
		case r.URL.Path == "/v1/trade/order" && r.Method == http.MethodPost:
			if s.orderErr != 0 {
				http.Error(w, "order rejected", s.orderErr)
				return
			}
			s.mu.Lock()
			_ = json.NewDecoder(r.Body).Decode(&s.order)
			s.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]string{"order_id": s.orderID})
		case strings.HasPrefix(r.URL.Path, "/v1/trade/order/") && r.Method == http.MethodDelete:
			if s.delErr != 0 {
				http.Error(w, "delete failed", s.delErr)
				return
			}
			w.WriteHeader(200)
		default:
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func (s *tradeServer) sawCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func newTrade(baseURL string) *TradeRoundTrip {
	return NewTradeRoundTrip(nil, TradeConfig{
		AccountsURL:        baseURL + "/v1/trade/accounts",
		QuotesURL:          baseURL + "/v1/quotes",
		OrderURL:           baseURL + "/v1/trade/order",
		SettlementCurrency: "USDT",
		MinBalance:         dec("10"),
		Instrument:         "BTCUSDT",
		Quantity:           dec("0.0001"),
		Markup:             dec("1.2"),
	}, 2*time.Second)
}

func TestTradeRoundTrip_HappyPathDeletesOrder(t *testing.T) {
	srv := &tradeServer{
		balance: "100",
		quotes:  []map[string]string{{"pair": "BTCUSDT", "price_24h_max": "64321.75"}},
		orderID: "ord-1",
	}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	res, err := newTrade(ts.URL).Run(context.Background(), "DEMO", "Bearer tok")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != 200 {
		t.Fatalf("want status 200, got %d (%v)", res.Status, res.Response)
	}

	want := []string{
		"GET /v1/trade/accounts",
		"GET /v1/quotes",
		"POST /v1/trade/order",
		"DELETE /v1/trade/order/ord-1",
	}
	got := srv.sawCalls()
	if len(got) != len(want) {
		t.Fatalf("want calls %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d: want %s, got %s", i, want[i], got[i])
		}
	}

	// limit price = floor(64321.75) * 1.2 = 77185.2
	if srv.order["limit_price"] != "77185.2" {
		t.Fatalf("want limit price 77185.2, got %v", srv.order["limit_price"])
	}
	if srv.order["side"] != "sell" || srv.order["type"] != "limit" {
		t.Fatalf("unexpected order: %v", srv.order)
	}
	if srv.order["client_order_id"] == "" {
		t.Fatal("client order id missing")
	}
}

func TestTradeRoundTrip_InsufficientFundsShortCircuits(t *testing.T) {
	srv := &tradeServer{balance: "5"}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	res, err := newTrade(ts.URL).Run(context.Background(), "DEMO", "Bearer tok")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != 0 {
		t.Fatalf("precondition failure should record status 0, got %d", res.Status)
	}
	body, _ := res.Response.(map[string]any)
	if body == nil || !strings.Contains(body["error"].(string), "balance") {
		t.Fatalf("unexpected recorded response: %v", res.Response)
	}

	got := srv.sawCalls()
	if len(got) != 1 || got[0] != "GET /v1/trade/accounts" {
		t.Fatalf("no quote/order/delete calls should be issued, got %v", got)
	}
}

func TestTradeRoundTrip_QuoteNotFound(t *testing.T) {
	srv := &tradeServer{
		balance: "100",
		quotes:  []map[string]string{{"pair": "ETHUSDT", "price_24h_max": "3000"}},
	}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	res, err := newTrade(ts.URL).Run(context.Background(), "DEMO", "Bearer tok")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != 0 {
		t.Fatalf("want recorded failure, got %d", res.Status)
	}
	got := srv.sawCalls()
	if len(got) != 2 {
		t.Fatalf("order must not be placed without a quote, got %v", got)
	}
}

func TestTradeRoundTrip_OrderRejectionRecorded(t *testing.T) {
	srv := &tradeServer{
		balance:  "100",
		quotes:   []map[string]string{{"pair": "BTCUSDT", "price_24h_max": "64000"}},
		orderErr: 422,
	}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	res, err := newTrade(ts.URL).Run(context.Background(), "DEMO", "Bearer tok")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != 422 {
		t.Fatalf("want upstream status recorded, got %d", res.Status)
	}
	if res.ResponseTimeMS < 0 {
		t.Fatalf("timing envelope missing: %f", res.ResponseTimeMS)
	}
}

func TestTradeRoundTrip_DeleteFailureSurfaces(t *testing.T) {
	srv := &tradeServer{
		balance: "100",
		quotes:  []map[string]string{{"pair": "BTCUSDT", "price_24h_max": "64000"}},
		orderID: "ord-9",
		delErr:  500,
	}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	res, err := newTrade(ts.URL).Run(context.Background(), "DEMO", "Bearer tok")
	if err != nil {
		t.Fatal(err)
	}
	// the failed compensating delete is recorded, not hidden
	if res.Status != 500 {
		t.Fatalf("want delete failure recorded as 500, got %d", res.Status)
	}
}

func TestLimitPrice_FloorsBeforeMarkup(t *testing.T) {
	got := limitPrice(dec("99.99"), dec("1.2"))
	if got.String() != "118.8" {
		t.Fatalf("want 118.8, got %s", got)
	}
}
