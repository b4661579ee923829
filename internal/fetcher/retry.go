package fetcher

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	backoffInitial = time.Second
	backoffFactor  = 1.7
	backoffCap     = 30 * time.Second
)

// RetryPolicy decides how many times a request is tried and how long to
// wait between tries.
type RetryPolicy struct {
	MaxAttempts int
	NewBackOff  func() backoff.BackOff
	Retryable   func(status int) bool
}

// DefaultRetryPolicy backs off exponentially by a factor of 1.7, capped at 30s.
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = backoffInitial
			b.Multiplier = backoffFactor
			b.MaxInterval = backoffCap
			b.RandomizationFactor = 0.2
			b.MaxElapsedTime = 0
			b.Reset()
			return b
		},
		Retryable: RetryableStatus,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy(p.MaxAttempts)
	if p.NewBackOff == nil {
		p.NewBackOff = def.NewBackOff
	}
	if p.Retryable == nil {
		p.Retryable = def.Retryable
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	return p
}

// RetryableStatus covers throttling and transient server errors.
func RetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func isThrottle(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// parseRetryAfter honours only the delta-seconds form; HTTP dates are ignored.
func parseRetryAfter(raw string, limit time.Duration) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if limit > 0 && d > limit {
		d = limit
	}
	return d, true
}
