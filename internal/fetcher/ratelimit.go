package fetcher

import (
	"math"
	"time"
)

// Profile is one politeness profile: delay = BaseDelay * Multiplier^failures, capped at MaxDelay.
type Profile struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// RateLimitState is the adaptive delay state of a client. It is persisted
// between runs so a restart does not forget an upstream that was pushing back.
type RateLimitState struct {
	BaseDelayMs         int64   `json:"baseDelayMs"`
	MaxDelayMs          int64   `json:"maxDelayMs"`
	FailureMultiplier   float64 `json:"failureMultiplier"`
	ConsecutiveFailures float64 `json:"consecutiveFailures"`
	Conservative        bool    `json:"conservative"`
}

func newRateLimitState(p Profile) RateLimitState {
	s := RateLimitState{}
	s.apply(p)
	return s
}

func (s *RateLimitState) apply(p Profile) {
	s.BaseDelayMs = p.BaseDelay.Milliseconds()
	s.MaxDelayMs = p.MaxDelay.Milliseconds()
	s.FailureMultiplier = p.Multiplier
}

// RequiredDelay is the minimum spacing between two requests to one origin.
func (s RateLimitState) RequiredDelay() time.Duration {
	base := float64(s.BaseDelayMs)
	ceiling := float64(s.MaxDelayMs)
	mult := s.FailureMultiplier
	if mult < 1 {
		mult = 1
	}
	delay := base * math.Pow(mult, s.ConsecutiveFailures)
	if math.IsInf(delay, 0) || math.IsNaN(delay) || delay > ceiling {
		delay = ceiling
	}
	return time.Duration(delay) * time.Millisecond
}

// recordFailure bumps the failure counter and reports whether the
// threshold was crossed.
func (s *RateLimitState) recordFailure(threshold int) bool {
	s.ConsecutiveFailures++
	return threshold > 0 && s.ConsecutiveFailures >= float64(threshold)
}

// recordSuccess decays the failure counter; it never resets it outright.
func (s *RateLimitState) recordSuccess(decay float64) {
	s.ConsecutiveFailures -= decay
	if s.ConsecutiveFailures < 0 {
		s.ConsecutiveFailures = 0
	}
}

// swapConservative switches to the slow profile. The switch is one-way and
// reports whether it happened on this call.
func (s *RateLimitState) swapConservative(p Profile) bool {
	if s.Conservative {
		return false
	}
	s.Conservative = true
	s.apply(p)
	return true
}

// ProfileName is "conservative" after the swap, "normal" before.
func (s RateLimitState) ProfileName() string {
	if s.Conservative {
		return "conservative"
	}
	return "normal"
}
