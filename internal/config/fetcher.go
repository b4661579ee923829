package config

import "time"

// RateProfile is one politeness profile: delay = BaseDelay * Multiplier^failures, capped at MaxDelay.
type RateProfile struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// FetcherConfig controls the polite HTTP client.
type FetcherConfig struct {
	Normal           RateProfile
	Conservative     RateProfile
	FailureThreshold int
	MaxAttempts      int
	AttemptTimeout   time.Duration
	RetryAfterCap    time.Duration
}

func loadFetcher() FetcherConfig {
	return FetcherConfig{
		Normal: RateProfile{
			BaseDelay:  durationEnvOrDefault(envFetchBaseDelay, defaultFetchBaseDelay),
			MaxDelay:   durationEnvOrDefault(envFetchMaxDelay, defaultFetchMaxDelay),
			Multiplier: floatEnvOrDefault(envFetchFailureMultiplier, defaultFetchFailureMultiplier),
		},
		Conservative: RateProfile{
			BaseDelay:  durationEnvOrDefault(envFetchSlowBaseDelay, defaultFetchSlowBaseDelay),
			MaxDelay:   durationEnvOrDefault(envFetchSlowMaxDelay, defaultFetchSlowMaxDelay),
			Multiplier: floatEnvOrDefault(envFetchSlowMultiplier, defaultFetchSlowMultiplier),
		},
		FailureThreshold: intEnvOrDefault(envFetchFailureThreshold, defaultFetchFailureThreshold),
		MaxAttempts:      intEnvOrDefault(envFetchMaxAttempts, defaultFetchMaxAttempts),
		AttemptTimeout:   durationEnvOrDefault(envFetchAttemptTimeout, defaultFetchAttemptTimeout),
		RetryAfterCap:    durationEnvOrDefault(envFetchRetryAfterCap, defaultFetchRetryAfterCap),
	}
}
