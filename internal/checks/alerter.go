package checks

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/exchangewatch/internal/domain"
	"github.com/hamed0406/exchangewatch/internal/notify"
)

// Alerter compares a probe result against the last persisted status for
// the pair and notifies on a change for the worse. The read-then-act is
// best effort: overlapping cycles can double-notify, which keeps
// alerting at-least-once rather than exactly-once.
type Alerter struct {
	Logger   *zap.Logger
	Notifier notify.Notifier
	// MinStatus is the lowest HTTP status treated as a failure. A status
	// of 0 (no HTTP response from a compound probe) always counts.
	MinStatus int
}

func NewAlerter(logger *zap.Logger, notifier notify.Notifier, minStatus int) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minStatus <= 0 {
		minStatus = 400
	}
	return &Alerter{Logger: logger, Notifier: notifier, MinStatus: minStatus}
}

// Maybe sends a notification when cur is a failure and its status
// differs from the previously persisted one. prev is nil for a pair
// never recorded before.
func (a *Alerter) Maybe(ctx context.Context, prev, cur *domain.ProbeResult) {
	if a == nil || a.Notifier == nil || cur == nil {
		return
	}
	if !a.failing(cur.Status) {
		return
	}
	if prev != nil && prev.Status == cur.Status {
		return
	}

	title := "🔴 Endpoint DOWN"
	text := fmt.Sprintf(
		"Tenant: %s\nEndpoint: %s\nStatus: %s\nResponse time: %.0f ms\nChecked: %s",
		cur.TenantID, cur.Endpoint, statusText(cur.Status),
		cur.ResponseTimeMS, cur.Timestamp.Format(time.RFC3339),
	)
	if err := a.Notifier.Send(ctx, title, text); err != nil {
		a.Logger.Warn("alert_send_failed",
			zap.String("tenant", string(cur.TenantID)),
			zap.String("endpoint", cur.Endpoint),
			zap.Error(err),
		)
	}
}

func (a *Alerter) failing(status int) bool {
	return status <= 0 || status >= a.MinStatus
}

func statusText(status int) string {
	if status <= 0 {
		return "n/a"
	}
	return strconv.Itoa(status)
}
