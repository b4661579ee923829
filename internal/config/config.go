package config

// Config holds runtime configuration for the ingestion service.
type Config struct {
	Port        string
	DataDir     string
	SourcesFile string
	ContactID   string
	Log         LogConfig
	Fetcher     FetcherConfig
	Scheduler   SchedulerConfig
	Store       StoreConfig
	Reconcile   ReconcileConfig
	Metrics     MetricsConfig
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Port:        envOrDefault(envPort, defaultPort),
		DataDir:     envOrDefault(envDataDir, defaultDataDir),
		SourcesFile: envOrDefault(envSourcesFile, defaultSourcesFile),
		ContactID:   envOrDefault(envContactID, ""),
		Log: LogConfig{
			Level:  envOrDefault(envLogLevel, defaultLogLevel),
			Format: envOrDefault(envLogFormat, defaultLogFormat),
		},
		Fetcher:   loadFetcher(),
		Scheduler: loadScheduler(),
		Store:     loadStore(),
		Reconcile: loadReconcile(),
		Metrics:   loadMetrics(),
	}
}
