package probe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hamed0406/exchangewatch/internal/domain"
)

type fakeCatalog struct {
	payloads map[string]any
}

func (f *fakeCatalog) ListEndpoints(ctx context.Context) ([]domain.EndpointDefinition, error) {
	return nil, nil
}
func (f *fakeCatalog) AddEndpoint(ctx context.Context, ep domain.EndpointDefinition) error {
	return nil
}
func (f *fakeCatalog) Payload(ctx context.Context, id domain.TenantID, url string) (any, error) {
	return f.payloads[string(id)+" "+url], nil
}
func (f *fakeCatalog) PutPayload(ctx context.Context, id domain.TenantID, url string, payload any) error {
	return nil
}

func newExecutor() *Executor {
	return NewExecutor(nil, &fakeCatalog{payloads: map[string]any{}}, 2*time.Second)
}

func TestRun_2xxRecordsUpMarker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`)) // body is irrelevant for healthy endpoints
	}))
	defer ts.Close()

	res, err := newExecutor().Run(context.Background(), "DEMO",
		domain.EndpointDefinition{URL: ts.URL + "/currencies", Method: "GET"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != 200 {
		t.Fatalf("want status 200, got %d", res.Status)
	}
	marker, ok := res.Response.(map[string]any)
	if !ok || marker["statusText"] != "service is up" {
		t.Fatalf("want up marker, got %v", res.Response)
	}
	if res.ResponseTimeMS < 0 {
		t.Fatalf("latency should be >= 0, got %f", res.ResponseTimeMS)
	}
}

func TestRun_TenantScopedAddsExchangeQuery(t *testing.T) {
	var gotExchange string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotExchange = r.URL.Query().Get("exchange")
	}))
	defer ts.Close()

	res, err := newExecutor().Run(context.Background(), "DEMO",
		domain.EndpointDefinition{URL: ts.URL + "/quotes", Method: "GET", TenantScoped: true}, "")
	if err != nil {
		t.Fatal(err)
	}
	if gotExchange != "DEMO" {
		t.Fatalf("want exchange=DEMO query, got %q", gotExchange)
	}
	if res.Request.Query["exchange"] != "DEMO" {
		t.Fatalf("persisted request should carry the query, got %v", res.Request.Query)
	}
}

func TestRun_Non2xxRecordsStatusAndBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "boom"})
	}))
	defer ts.Close()

	res, err := newExecutor().Run(context.Background(), "DEMO",
		domain.EndpointDefinition{URL: ts.URL, Method: "GET"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != 500 {
		t.Fatalf("want status 500, got %d", res.Status)
	}
	body, ok := res.Response.(map[string]any)
	if !ok {
		t.Fatalf("want recorded body, got %T", res.Response)
	}
	if body["status"] != "500" {
		t.Fatalf("sanitized status should be text, got %v", body["status"])
	}
	if _, err := json.Marshal(res.Response); err != nil {
		t.Fatalf("recorded response must serialize: %v", err)
	}
}

func TestRun_404IsInvalidExchange(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	res, err := newExecutor().Run(context.Background(), "DEMO",
		domain.EndpointDefinition{URL: ts.URL, Method: "GET", TenantScoped: true}, "")
	if !errors.Is(err, ErrInvalidExchange) {
		t.Fatalf("want ErrInvalidExchange, got %v", err)
	}
	if res != nil {
		t.Fatalf("no result should be produced, got %+v", res)
	}
}

func TestRun_401IsTransientSkip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	res, err := newExecutor().Run(context.Background(), "DEMO",
		domain.EndpointDefinition{URL: ts.URL, Method: "GET"}, "Bearer stale")
	if !IsTransient(err) {
		t.Fatalf("want transient skip, got %v", err)
	}
	if res != nil {
		t.Fatalf("no result should be produced, got %+v", res)
	}
}

func TestRun_TransportErrorIsTransientSkip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // connection refused from here on

	res, err := newExecutor().Run(context.Background(), "DEMO",
		domain.EndpointDefinition{URL: ts.URL, Method: "GET"}, "")
	if !IsTransient(err) {
		t.Fatalf("want transient skip, got %v", err)
	}
	if res != nil {
		t.Fatalf("no result should be produced, got %+v", res)
	}
}

func TestRun_WriteMethodSendsStoredPayload(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer ts.Close()

	url := ts.URL + "/getUserMfaSettings"
	x := NewExecutor(nil, &fakeCatalog{payloads: map[string]any{
		"DEMO " + url: map[string]any{"clientToken": "tok-1"},
	}}, 2*time.Second)

	res, err := x.Run(context.Background(), "DEMO",
		domain.EndpointDefinition{URL: url, Method: "POST", TokenRequired: true}, "Bearer tok-1")
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("want auth header forwarded, got %q", gotAuth)
	}
	if gotBody["clientToken"] != "tok-1" {
		t.Fatalf("want stored payload sent, got %v", gotBody)
	}
	if res.Request.Body == nil {
		t.Fatal("persisted request should carry the body")
	}
}
