// Package notify is the outbound alert transport. Send failures are for
// the caller to log; they never fail a probe.
package notify

import (
	"context"

	"go.uber.org/multierr"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans an alert out to several transports and reports every
// failure, not just the first.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, title, text); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
