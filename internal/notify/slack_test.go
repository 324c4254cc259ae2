package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlack_OK(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = payload["text"]
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	if s == nil {
		t.Fatal("expected slack client")
	}
	if err := s.Send(context.Background(), "Endpoint DOWN", "details"); err != nil {
		t.Fatalf("send err: %v", err)
	}
	if !strings.HasPrefix(got, "*Endpoint DOWN*") {
		t.Fatalf("payload not as expected: %q", got)
	}
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	if err := NewSlack(ts.URL).Send(context.Background(), "X", "Y"); err == nil {
		t.Fatal("expected error on non-2xx")
	}
}

func TestSlack_EmptyWebhookDisabled(t *testing.T) {
	if s := NewSlack(""); s != nil {
		t.Fatal("empty webhook should give nil client")
	}
}

func TestMulti_CollectsAllFailures(t *testing.T) {
	boom := errors.New("boom")
	failing := notifierFunc(func(ctx context.Context, title, text string) error { return boom })
	okCalls := 0
	ok := notifierFunc(func(ctx context.Context, title, text string) error { okCalls++; return nil })

	err := Multi{failing, nil, ok, failing}.Send(context.Background(), "t", "x")
	if err == nil {
		t.Fatal("want combined error")
	}
	if okCalls != 1 {
		t.Fatalf("healthy transport should still be called, got %d", okCalls)
	}
}

type notifierFunc func(ctx context.Context, title, text string) error

func (f notifierFunc) Send(ctx context.Context, title, text string) error {
	return f(ctx, title, text)
}
