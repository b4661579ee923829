package metrics

import (
	"context"
	"testing"
	"time"
)

func TestSetupDisabledReturnsNoHandler(t *testing.T) {
	rec, handler, shutdown, err := Setup(context.Background(), TelemetryConfig{
		Enabled: false,
	})
	if err != nil {
		t.Fatalf("expected no error when disabled, got %v", err)
	}
	if rec == nil {
		t.Fatalf("expected recorder")
	}
	if handler != nil {
		t.Fatalf("expected nil handler when disabled")
	}
	if shutdown == nil {
		t.Fatalf("expected shutdown function")
	}
}

func TestSetupEnabledInitializesRecorderAndHandler(t *testing.T) {
	rec, handler, shutdown, err := Setup(context.Background(), TelemetryConfig{
		Enabled:     true,
		ServiceName: "game-ingest-service",
		// No OTLP endpoint; uses Prometheus exporter only.
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec == nil {
		t.Fatalf("expected recorder")
	}
	if handler == nil {
		t.Fatalf("expected handler when enabled")
	}
	if shutdown == nil {
		t.Fatalf("expected shutdown function")
	}

	// Exercise otel-backed recorders to ensure no panic.
	rec.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
	rec.RecordPollerCycle(time.Millisecond, nil)
	rec.RecordFetchAttempt("https://stats.example.org", OutcomeOK, time.Millisecond)
	rec.RecordRateLimit("https://stats.example.org", time.Second)
	rec.RecordRobotsDenied("https://stats.example.org")
	rec.RecordProfileSwap("https://stats.example.org")
	rec.RecordIngest("gameday", 2, 5)
	rec.RecordReconciliation("use_primary", 0)
	rec.RecordUpsert("game", 3, nil)
	rec.RecordTaskRemoved("no_update")

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}
