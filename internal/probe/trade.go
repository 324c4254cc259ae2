package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hamed0406/exchangewatch/internal/domain"
	"github.com/hamed0406/exchangewatch/internal/sanitize"
)

// TradeConfig parameterizes the order round trip.
type TradeConfig struct {
	AccountsURL        string
	QuotesURL          string
	OrderURL           string
	SettlementCurrency string
	MinBalance         decimal.Decimal
	Instrument         string
	Quantity           decimal.Decimal
	// Markup is the factor applied to the floored 24h high to place the
	// sell order safely above market.
	Markup decimal.Decimal
}

// TradeRoundTrip is the compound probe: verify the settlement balance,
// fetch a quote, place a limit sell order and delete it again, all under
// one auth header and one timing envelope. Any step failure
// short-circuits the rest and is classified by the executor's rules.
type TradeRoundTrip struct {
	Logger *zap.Logger
	Client *http.Client
	Cfg    TradeConfig
}

func NewTradeRoundTrip(logger *zap.Logger, cfg TradeConfig, timeout time.Duration) *TradeRoundTrip {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TradeRoundTrip{
		Logger: logger,
		Client: &http.Client{Timeout: timeout},
		Cfg:    cfg,
	}
}

type tradeAccount struct {
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

type quote struct {
	Pair        string          `json:"pair"`
	Price24hMax decimal.Decimal `json:"price_24h_max"`
}

type orderRequest struct {
	Instrument    string          `json:"instrument"`
	Type          string          `json:"type"`
	Side          string          `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	LimitPrice    decimal.Decimal `json:"limit_price"`
	ClientOrderID string          `json:"client_order_id"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
}

func (t *TradeRoundTrip) Run(ctx context.Context, tenantID domain.TenantID, authHeader string) (*domain.ProbeResult, error) {
	start := time.Now()
	res := &domain.ProbeResult{
		TenantID: tenantID,
		Endpoint: t.Cfg.OrderURL,
		Request: domain.RequestInfo{
			Body: map[string]any{
				"instrument": t.Cfg.Instrument,
				"side":       "sell",
				"type":       "limit",
			},
		},
		Timestamp: time.Now().UTC(),
	}
	finish := func(status int, response any) *domain.ProbeResult {
		res.Status = status
		res.Response = response
		res.ResponseTimeMS = time.Since(start).Seconds() * 1000
		return res
	}

	err := t.roundTrip(ctx, tenantID, authHeader)
	var ue *upstreamError
	switch {
	case err == nil:
		return finish(http.StatusOK, upMarker(http.StatusOK)), nil
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrQuoteNotFound):
		return finish(0, map[string]any{"error": err.Error()}), nil
	case errors.As(err, &ue):
		return finish(ue.Status, sanitize.Tree(map[string]any{
			"status": ue.Status,
			"data":   ue.Body,
		})), nil
	default:
		// transient or ErrInvalidExchange; caller decides
		return nil, err
	}
}

func (t *TradeRoundTrip) roundTrip(ctx context.Context, tenantID domain.TenantID, authHeader string) error {
	var accounts []tradeAccount
	if err := t.do(ctx, http.MethodGet, t.Cfg.AccountsURL, authHeader, nil, &accounts); err != nil {
		return err
	}
	balance, found := settlementBalance(accounts, t.Cfg.SettlementCurrency)
	if !found || balance.LessThan(t.Cfg.MinBalance) {
		return fmt.Errorf("%w: %s balance %s, minimum %s",
			ErrInsufficientFunds, t.Cfg.SettlementCurrency, balance, t.Cfg.MinBalance)
	}

	var quotes []quote
	if err := t.do(ctx, http.MethodGet, withExchangeQuery(t.Cfg.QuotesURL, tenantID), authHeader, nil, &quotes); err != nil {
		return err
	}
	q, found := findQuote(quotes, t.Cfg.Instrument)
	if !found {
		return fmt.Errorf("%w: %s", ErrQuoteNotFound, t.Cfg.Instrument)
	}

	order := orderRequest{
		Instrument:    t.Cfg.Instrument,
		Type:          "limit",
		Side:          "sell",
		Quantity:      t.Cfg.Quantity,
		LimitPrice:    limitPrice(q.Price24hMax, t.Cfg.Markup),
		ClientOrderID: uuid.NewString(),
	}
	var created orderResponse
	if err := t.do(ctx, http.MethodPost, t.Cfg.OrderURL, authHeader, order, &created); err != nil {
		return err
	}
	if created.OrderID == "" {
		return &upstreamError{Status: http.StatusBadGateway, Body: "order id missing from create response"}
	}

	// Compensating delete. If this fails, the order is left resting on
	// the book; there is no reconciliation sweep, so surface it loudly.
	if err := t.do(ctx, http.MethodDelete, t.Cfg.OrderURL+"/"+created.OrderID, authHeader, nil, nil); err != nil {
		t.Logger.Error("trade_probe_order_not_deleted",
			zap.String("tenant", string(tenantID)),
			zap.String("order_id", created.OrderID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// limitPrice is floor(high24) * markup.
func limitPrice(high24 decimal.Decimal, markup decimal.Decimal) decimal.Decimal {
	return high24.Floor().Mul(markup)
}

func settlementBalance(accounts []tradeAccount, currency string) (decimal.Decimal, bool) {
	for _, a := range accounts {
		if a.Currency == currency {
			return a.Balance, true
		}
	}
	return decimal.Zero, false
}

func findQuote(quotes []quote, instrument string) (quote, bool) {
	for _, q := range quotes {
		if q.Pair == instrument {
			return q, true
		}
	}
	return quote{}, false
}

// do issues one step of the round trip and classifies it like a single
// probe request.
func (t *TradeRoundTrip) do(ctx context.Context, method, target, authHeader string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return &TransientError{URL: target, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return &TransientError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &TransientError{URL: target, Err: errors.New("authorization rejected (401)")}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s returned 404", ErrInvalidExchange, target)
	case resp.StatusCode/100 != 2:
		return &upstreamError{Status: resp.StatusCode, Body: readBody(resp)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &upstreamError{Status: resp.StatusCode, Body: "undecodable response: " + err.Error()}
		}
	}
	return nil
}
