package probe

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hamed0406/exchangewatch/internal/domain"
)

// upstream bodies are capped before persistence
const maxBodyBytes = 64 << 10

// readBody decodes the response body as JSON when possible, otherwise
// returns it as text.
func readBody(resp *http.Response) any {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil || len(raw) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err == nil {
		return decoded
	}
	return string(raw)
}

// withExchangeQuery appends exchange=<tenant> to a tenant-scoped URL.
func withExchangeQuery(rawURL string, id domain.TenantID) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("exchange", string(id))
	u.RawQuery = q.Encode()
	return u.String()
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}

// upMarker is the normalized response persisted for healthy endpoints.
func upMarker(status int) map[string]any {
	return map[string]any{
		"status":     strconv.Itoa(status),
		"statusText": "service is up",
	}
}
