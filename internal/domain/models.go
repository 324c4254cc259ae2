package domain

import "time"

type TenantID string

// TenantCredentials is one exchange-account configuration being monitored.
// Credentials are created and rotated out of band; the engine only reads them.
type TenantCredentials struct {
	TenantID TenantID `json:"tenant_id"`
	Username string   `json:"username"`
	Password string   `json:"password"`
}

// ProbeKind selects how a catalog entry is checked.
type ProbeKind string

const (
	// ProbeRequest is a single HTTP request against the endpoint URL.
	ProbeRequest ProbeKind = "request"
	// ProbeTradeRoundTrip is the compound balance/quote/order/delete check.
	ProbeTradeRoundTrip ProbeKind = "trade_round_trip"
)

// EndpointDefinition is a catalog entry. Entries are immutable during a
// check cycle; the catalog is re-read at the start of each cycle.
type EndpointDefinition struct {
	URL           string    `json:"url"`
	Method        string    `json:"method"`
	TenantScoped  bool      `json:"tenant_scoped"`
	TokenRequired bool      `json:"token_required"`
	Probe         ProbeKind `json:"probe,omitempty"`
}

// RequestInfo is the persisted view of the request a probe issued.
type RequestInfo struct {
	Query map[string]string `json:"query,omitempty"`
	Body  any               `json:"body,omitempty"`
}

// ProbeResult is the outcome of one probe attempt, persisted keyed by
// (tenant, endpoint) with latest write wins. Status is the upstream HTTP
// status; 0 means the probe failed without an HTTP response (e.g. a
// precondition of the trade round trip).
type ProbeResult struct {
	TenantID       TenantID    `json:"tenant_id"`
	Endpoint       string      `json:"endpoint"`
	Status         int         `json:"status"`
	Request        RequestInfo `json:"request"`
	Response       any         `json:"response,omitempty"`
	ResponseTimeMS float64     `json:"response_time_ms"`
	Timestamp      time.Time   `json:"timestamp"`
}
