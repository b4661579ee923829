package fetcher

import (
	"errors"
	"fmt"
	"time"
)

// rateLimitError captures a throttling response so the retry loop can
// honour the server's Retry-After. It never leaves the package.
type rateLimitError struct {
	Origin     string
	StatusCode int
	RetryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (status=%d)", e.Origin, e.StatusCode)
}

// statusError is a non-success HTTP status.
type statusError struct {
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

func asRateLimitError(err error) (*rateLimitError, bool) {
	var rlErr *rateLimitError
	if errors.As(err, &rlErr) {
		return rlErr, true
	}
	return nil, false
}
