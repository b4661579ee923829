package main

import (
	"testing"
)

// Smoke test to ensure main honors SKIP_SERVER_RUN and does not block test runs.
func TestMainSkipsWhenEnvSet(t *testing.T) {
	t.Setenv("SKIP_SERVER_RUN", "1")
	main()
}

func TestRunFailsFastOnMissingSources(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SOURCES_FILE", dir+"/missing.yaml")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("STORE_DSN", dir+"/ingest.db")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "error")
	if code := run(); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}
