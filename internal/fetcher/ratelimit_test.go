package fetcher

import (
	"testing"
	"time"
)

func TestRequiredDelayIsMonotonicAndCapped(t *testing.T) {
	state := newRateLimitState(Profile{BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second, Multiplier: 2})

	prev := state.RequiredDelay()
	if prev != 2*time.Second {
		t.Fatalf("expected base delay with no failures, got %s", prev)
	}
	for i := 0; i < 20; i++ {
		state.recordFailure(0)
		next := state.RequiredDelay()
		if next < prev {
			t.Fatalf("delay decreased after failure %d: %s < %s", i+1, next, prev)
		}
		if next > 60*time.Second {
			t.Fatalf("delay exceeded cap: %s", next)
		}
		prev = next
	}
	if prev != 60*time.Second {
		t.Fatalf("expected delay to reach cap, got %s", prev)
	}
}

func TestSuccessDecaysWithoutReset(t *testing.T) {
	state := newRateLimitState(Profile{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2})
	for i := 0; i < 3; i++ {
		state.recordFailure(0)
	}

	state.recordSuccess(notModifiedDecay)
	if state.ConsecutiveFailures != 2.5 {
		t.Fatalf("expected fractional decay on 304, got %v", state.ConsecutiveFailures)
	}
	state.recordSuccess(successDecay)
	if state.ConsecutiveFailures != 1.5 {
		t.Fatalf("expected single-step decay on 200, got %v", state.ConsecutiveFailures)
	}
	state.recordSuccess(successDecay)
	state.recordSuccess(successDecay)
	if state.ConsecutiveFailures != 0 {
		t.Fatalf("expected failures floored at zero, got %v", state.ConsecutiveFailures)
	}
}

func TestThresholdAndConservativeSwap(t *testing.T) {
	normal := Profile{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2}
	slow := Profile{BaseDelay: 5 * time.Second, MaxDelay: 2 * time.Minute, Multiplier: 2.5}
	state := newRateLimitState(normal)

	if state.recordFailure(3) || state.recordFailure(3) {
		t.Fatalf("threshold crossed too early")
	}
	if !state.recordFailure(3) {
		t.Fatalf("expected threshold crossed on third failure")
	}
	if !state.swapConservative(slow) {
		t.Fatalf("expected first swap to report change")
	}
	if state.swapConservative(slow) {
		t.Fatalf("expected swap to be one-way")
	}
	if state.BaseDelayMs != 5000 || state.FailureMultiplier != 2.5 || state.ProfileName() != "conservative" {
		t.Fatalf("unexpected conservative state %+v", state)
	}
	state.recordSuccess(10)
	if !state.Conservative {
		t.Fatalf("successes must not revert the conservative profile")
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{"30", 30 * time.Second, true},
		{"900", 5 * time.Minute, true},
		{"", 0, false},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0, false},
		{"-4", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseRetryAfter(tc.raw, 5*time.Minute)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseRetryAfter(%q) = %s,%v want %s,%v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDefaultRetryPolicyBacksOffByFactor(t *testing.T) {
	policy := DefaultRetryPolicy(0)
	if policy.MaxAttempts != 4 {
		t.Fatalf("expected default attempts, got %d", policy.MaxAttempts)
	}
	for _, status := range []int{429, 500, 502, 503, 504} {
		if !policy.Retryable(status) {
			t.Fatalf("expected %d retryable", status)
		}
	}
	if policy.Retryable(404) || policy.Retryable(403) {
		t.Fatalf("client errors must not be retried")
	}

	bo := policy.NewBackOff()
	var last time.Duration
	for i := 0; i < 12; i++ {
		d := bo.NextBackOff()
		if d > time.Duration(float64(backoffCap)*1.2) {
			t.Fatalf("backoff exceeded cap with jitter: %s", d)
		}
		last = d
	}
	if last < time.Duration(float64(backoffCap)*0.8) {
		t.Fatalf("expected backoff to reach cap, got %s", last)
	}
}
