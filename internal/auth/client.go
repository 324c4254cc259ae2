// Package auth exchanges tenant credentials for a bearer token at the
// fixed authentication endpoint.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/exchangewatch/internal/domain"
)

// ErrInvalidCredentials marks a rejected token exchange (any non-2xx).
// There is no retry here; the next cycle's cache miss re-invokes us.
var ErrInvalidCredentials = errors.New("auth: credentials rejected")

// PayloadStore receives the post-auth payload for the MFA settings check.
type PayloadStore interface {
	PutPayload(ctx context.Context, id domain.TenantID, url string, payload any) error
}

type Client struct {
	TokenURL       string
	MfaSettingsURL string
	HTTP           *http.Client
	Payloads       PayloadStore
	Logger         *zap.Logger
}

func NewClient(tokenURL, mfaSettingsURL string, payloads PayloadStore, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		TokenURL:       tokenURL,
		MfaSettingsURL: mfaSettingsURL,
		HTTP:           &http.Client{Timeout: 10 * time.Second},
		Payloads:       payloads,
		Logger:         logger,
	}
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Exchange string `json:"exchange"`
}

type tokenResponse struct {
	ExchangeAccessToken string `json:"exchange_access_token"`
}

// Token exchanges creds for a bearer token. On success the fresh client
// token is also stored as the payload for the MFA settings endpoint, so
// that POSTed check never runs with a stale token.
func (c *Client) Token(ctx context.Context, creds domain.TenantCredentials) (string, error) {
	body, err := json.Marshal(tokenRequest{
		Username: creds.Username,
		Password: creds.Password,
		Exchange: string(creds.TenantID),
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrInvalidCredentials, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	if tr.ExchangeAccessToken == "" {
		return "", fmt.Errorf("%w: empty token in response", ErrInvalidCredentials)
	}

	if c.Payloads != nil && c.MfaSettingsURL != "" {
		p := map[string]string{
			"clientToken": tr.ExchangeAccessToken,
			"exchange":    string(creds.TenantID),
		}
		if err := c.Payloads.PutPayload(ctx, creds.TenantID, c.MfaSettingsURL, p); err != nil {
			c.Logger.Warn("auth_payload_save_failed",
				zap.String("tenant", string(creds.TenantID)),
				zap.Error(err),
			)
		}
	}
	return tr.ExchangeAccessToken, nil
}
