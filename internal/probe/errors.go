package probe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidExchange marks a 404 on a probed resource: the URL is
	// structurally wrong for that tenant and worth surfacing loudly
	// instead of masking as a routine failure.
	ErrInvalidExchange = errors.New("probe: exchange is invalid")

	// Trade round-trip preconditions. Recorded as failed outcomes.
	ErrInsufficientFunds = errors.New("probe: settlement balance below minimum")
	ErrQuoteNotFound     = errors.New("probe: instrument quote not found")
)

// TransientError wraps transport-level failures and 401 rejections.
// The pair is skipped without persistence or alerting and retried
// implicitly on the next cycle.
type TransientError struct {
	URL string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("probe: transient failure for %s: %v", e.URL, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be skipped without persistence.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// upstreamError carries a non-2xx response that is recorded as the
// probe's outcome rather than propagated.
type upstreamError struct {
	Status int
	Body   any
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("probe: upstream returned %d", e.Status)
}
