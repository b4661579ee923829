package config

import "time"

const (
	envPort        = "PORT"
	envDataDir     = "DATA_DIR"
	envSourcesFile = "SOURCES_FILE"
	envContactID   = "CONTACT_ID"
	envLogLevel    = "LOG_LEVEL"
	envLogFormat   = "LOG_FORMAT"

	envFetchBaseDelay         = "FETCH_BASE_DELAY"
	envFetchMaxDelay          = "FETCH_MAX_DELAY"
	envFetchFailureMultiplier = "FETCH_FAILURE_MULTIPLIER"
	envFetchFailureThreshold  = "FETCH_FAILURE_THRESHOLD"
	envFetchSlowBaseDelay     = "FETCH_CONSERVATIVE_BASE_DELAY"
	envFetchSlowMaxDelay      = "FETCH_CONSERVATIVE_MAX_DELAY"
	envFetchSlowMultiplier    = "FETCH_CONSERVATIVE_MULTIPLIER"
	envFetchMaxAttempts       = "FETCH_MAX_ATTEMPTS"
	envFetchAttemptTimeout    = "FETCH_ATTEMPT_TIMEOUT"
	envFetchRetryAfterCap     = "FETCH_RETRY_AFTER_CAP"

	envTickInterval      = "LIVE_TICK_INTERVAL"
	envTimezone          = "SCHEDULE_TIMEZONE"
	envExpectedSlate     = "SCHEDULE_EXPECTED_SLATE"
	envAvgGameDuration   = "SCHEDULE_AVG_GAME_DURATION"
	envLeadWindow        = "SCHEDULE_LEAD_WINDOW"
	envBackfillDays      = "SCHEDULE_BACKFILL_DAYS"
	envBackfillInterval  = "SCHEDULE_BACKFILL_INTERVAL"
	envDailyHour         = "SCHEDULE_DAILY_HOUR"
	envRetentionDays     = "SCHEDULE_RETENTION_DAYS"
	envMaxNoUpdateCycles = "LIVE_MAX_NO_UPDATE_CYCLES"
	envMaxSilence        = "LIVE_MAX_SILENCE"
	envSyncEnabled       = "SCHEDULE_SYNC_ENABLED"

	envStoreDriver = "STORE_DRIVER"
	envStoreDSN    = "STORE_DSN"

	envReconcileTolerance     = "RECONCILE_TOLERANCE"
	envReconcileMajorDelta    = "RECONCILE_MAJOR_DELTA"
	envReconcileCriticalRatio = "RECONCILE_CRITICAL_RATIO"

	envMetricsPort  = "METRICS_PORT"
	envMetricsOn    = "METRICS_ENABLED"
	envOtelEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOtelService  = "OTEL_SERVICE_NAME"
	envOtelInsecure = "OTEL_EXPORTER_OTLP_INSECURE"

	defaultPort        = "4000"
	defaultDataDir     = "data"
	defaultSourcesFile = "config/sources.yaml"
	defaultLogLevel    = "info"
	defaultLogFormat   = "json"
	defaultMetricsPort = "9090"

	// Normal politeness profile.
	defaultFetchBaseDelay         = 2 * time.Second
	defaultFetchMaxDelay          = 60 * time.Second
	defaultFetchFailureMultiplier = 2.0
	defaultFetchFailureThreshold  = 3
	// Conservative profile adopted after the failure threshold or any 429/503.
	defaultFetchSlowBaseDelay  = 5 * time.Second
	defaultFetchSlowMaxDelay   = 120 * time.Second
	defaultFetchSlowMultiplier = 2.5
	defaultFetchMaxAttempts    = 4
	defaultFetchAttemptTimeout = 30 * time.Second
	defaultFetchRetryAfterCap  = 5 * time.Minute

	defaultTickInterval      = 15 * time.Second
	defaultTimezone          = "America/New_York"
	defaultExpectedSlate     = 6
	defaultAvgGameDuration   = 3 * time.Hour
	defaultLeadWindow        = 30 * time.Minute
	defaultBackfillDays      = 3
	defaultBackfillInterval  = 90 * time.Second
	defaultDailyHour         = 6
	defaultRetentionDays     = 14
	defaultMaxNoUpdateCycles = 30
	defaultMaxSilence        = 2 * time.Hour
	defaultSyncEnabled       = true

	defaultStoreDriver = "sqlite"
	defaultStoreDSN    = "data/ingest.db"

	// Reconciliation thresholds pending product-owner confirmation.
	defaultReconcileTolerance     = 0
	defaultReconcileMajorDelta    = 5
	defaultReconcileCriticalRatio = 0.5
)
