// Package probe issues health-check requests against exchange API
// endpoints and classifies their outcomes.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/exchangewatch/internal/domain"
	"github.com/hamed0406/exchangewatch/internal/repo"
	"github.com/hamed0406/exchangewatch/internal/sanitize"
)

// Executor runs one HTTP request per (tenant, endpoint) pair, measures
// wall-clock latency and classifies the outcome:
//
//  1. transport error  -> TransientError (no persistence, no alert)
//  2. 401              -> TransientError (credentials may be mid-rotation)
//  3. 404              -> ErrInvalidExchange, propagated
//  4. other non-2xx    -> recorded with status and sanitized body
//  5. 2xx              -> recorded with status and the up marker
type Executor struct {
	Logger  *zap.Logger
	Client  *http.Client
	Catalog repo.EndpointCatalog
}

func NewExecutor(logger *zap.Logger, catalog repo.EndpointCatalog, timeout time.Duration) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Executor{
		Logger:  logger,
		Client:  &http.Client{Timeout: timeout},
		Catalog: catalog,
	}
}

func (x *Executor) Run(ctx context.Context, tenantID domain.TenantID, ep domain.EndpointDefinition, authHeader string) (*domain.ProbeResult, error) {
	target := ep.URL
	if ep.TenantScoped {
		target = withExchangeQuery(target, tenantID)
	}
	method := strings.ToUpper(ep.Method)
	if method == "" {
		method = http.MethodGet
	}

	var payload any
	if method != http.MethodGet && method != http.MethodHead {
		p, err := x.Catalog.Payload(ctx, tenantID, ep.URL)
		if err != nil {
			x.Logger.Warn("probe_payload_lookup_failed",
				zap.String("tenant", string(tenantID)),
				zap.String("url", ep.URL),
				zap.Error(err),
			)
		}
		payload = p
	}

	req, err := x.newRequest(ctx, method, target, payload, authHeader)
	if err != nil {
		return nil, &TransientError{URL: target, Err: err}
	}

	start := time.Now()
	resp, err := x.Client.Do(req)
	elapsed := time.Since(start).Seconds() * 1000

	result := &domain.ProbeResult{
		TenantID: tenantID,
		Endpoint: ep.URL,
		Request: domain.RequestInfo{
			Query: sanitize.Query(target),
			Body:  sanitize.Tree(payload),
		},
		ResponseTimeMS: elapsed,
		Timestamp:      time.Now().UTC(),
	}

	if err != nil {
		x.logTransport(target, err)
		return nil, &TransientError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &TransientError{URL: target, Err: errors.New("authorization rejected (401)")}
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s returned 404 for tenant %s", ErrInvalidExchange, ep.URL, tenantID)
	case resp.StatusCode/100 == 2:
		result.Status = resp.StatusCode
		result.Response = upMarker(resp.StatusCode)
	default:
		result.Status = resp.StatusCode
		result.Response = sanitize.Tree(map[string]any{
			"status":     resp.StatusCode,
			"statusText": http.StatusText(resp.StatusCode),
			"headers":    resp.Header,
			"data":       readBody(resp),
		})
	}
	return result, nil
}

func (x *Executor) newRequest(ctx context.Context, method, target string, payload any, authHeader string) (*http.Request, error) {
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, target, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, target, nil)
	}
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	return req, nil
}

func (x *Executor) logTransport(target string, err error) {
	dns := CheckDNS(extractHost(target))
	x.Logger.Warn("probe_transport_error",
		zap.String("url", target),
		zap.String("dns_class", dns.Class),
		zap.Error(err),
	)
}
