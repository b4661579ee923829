package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/config"
	"github.com/preston-bernstein/game-ingest-service/internal/fetcher"
	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
	"github.com/preston-bernstein/game-ingest-service/internal/providers"
	"github.com/preston-bernstein/game-ingest-service/internal/schedule"
	"github.com/preston-bernstein/game-ingest-service/internal/testutil"
)

func newStubHTTPServer(listenErr error) *testutil.StubHTTPServer {
	return &testutil.StubHTTPServer{AddrVal: ":0", ListenErr: listenErr, Listening: make(chan struct{})}
}

type stubRunner struct {
	err     error
	stopped chan struct{}
}

func (r *stubRunner) Run(ctx context.Context) error {
	if r.err != nil {
		return r.err
	}
	<-ctx.Done()
	close(r.stopped)
	return nil
}

func TestRunShutsDownOnCancel(t *testing.T) {
	httpSrv := newStubHTTPServer(nil)
	plr := &testutil.StubPoller{}
	runner := &stubRunner{stopped: make(chan struct{})}
	srv := newServerWithDeps(config.Config{}, nil, httpSrv, plr, runner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, cancel) }()

	<-httpSrv.Listening
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
	<-runner.stopped
	if start, stop := plr.Calls(); start != 1 || stop != 1 {
		t.Fatalf("expected poller start/stop once, got %d/%d", start, stop)
	}
	if httpSrv.Shutdowns() != 1 {
		t.Fatalf("expected http shutdown once, got %d", httpSrv.Shutdowns())
	}
}

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func TestRunClosesResourcesAfterRunnersReturn(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(step string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, step)
	}
	runner := runnerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		record("runner")
		return nil
	})
	srv := newServerWithDeps(config.Config{}, nil, newStubHTTPServer(nil), &testutil.StubPoller{}, runner)
	srv.closers = []func() error{func() error {
		record("store")
		return nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.Run(ctx, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "runner" || order[1] != "store" {
		t.Fatalf("expected store closed after runners, got %v", order)
	}
}

func TestRunReturnsRunnerError(t *testing.T) {
	boom := errors.New("watch failed")
	plr := &testutil.StubPoller{}
	srv := newServerWithDeps(config.Config{}, nil, newStubHTTPServer(nil), plr, &stubRunner{err: boom})

	err := srv.Run(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected runner error, got %v", err)
	}
	if _, stop := plr.Calls(); stop != 1 {
		t.Fatalf("expected poller stopped after runner failure")
	}
}

func TestRunStopsWhenHTTPServerFails(t *testing.T) {
	httpSrv := newStubHTTPServer(errors.New("address in use"))
	srv := newServerWithDeps(config.Config{}, nil, httpSrv, &testutil.StubPoller{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, cancel) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected listen failure to stop the server")
	}
}

func TestBuildMetricsHandlesSetupFailure(t *testing.T) {
	origSetup := metricsSetup
	defer func() { metricsSetup = origSetup }()
	metricsSetup = func(context.Context, metrics.TelemetryConfig) (*metrics.Recorder, http.Handler, func(context.Context) error, error) {
		return nil, nil, nil, errors.New("fail")
	}

	rec, handler, srv, shutdown := buildMetrics(config.Config{Metrics: config.MetricsConfig{Enabled: true}}, nil, nil)
	if rec == nil {
		t.Fatalf("expected fallback recorder on setup failure")
	}
	if handler != nil || srv != nil || shutdown != nil {
		t.Fatalf("expected no telemetry surface on failure")
	}
}

func TestBuildMetricsUsesInjectedRecorder(t *testing.T) {
	rec, _ := testutil.NewRecorderWithShutdown()
	got, handler, srv, _ := buildMetrics(config.Config{Metrics: config.MetricsConfig{Enabled: true}}, nil, rec)
	if got != rec || handler != nil || srv != nil {
		t.Fatalf("expected injected recorder passthrough")
	}
}

func TestBuildMetricsDedicatedPort(t *testing.T) {
	origSetup := metricsSetup
	defer func() { metricsSetup = origSetup }()
	promHandler := http.NotFoundHandler()
	metricsSetup = func(context.Context, metrics.TelemetryConfig) (*metrics.Recorder, http.Handler, func(context.Context) error, error) {
		return metrics.NewRecorder(), promHandler, func(context.Context) error { return nil }, nil
	}

	cases := []struct {
		name     string
		port     string
		wantSrv  bool
		wantAddr string
	}{
		{"separate port", "9090", true, ":9090"},
		{"same port", "4000", false, ""},
		{"no port", "", false, ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Config{Port: "4000", Metrics: config.MetricsConfig{Enabled: true, Port: tc.port}}
			_, handler, srv, _ := buildMetrics(cfg, nil, nil)
			if handler == nil {
				t.Fatalf("expected prometheus handler")
			}
			if (srv != nil) != tc.wantSrv {
				t.Fatalf("expected dedicated server=%v, got %v", tc.wantSrv, srv != nil)
			}
			if srv != nil && srv.Addr() != tc.wantAddr {
				t.Fatalf("expected addr %s, got %s", tc.wantAddr, srv.Addr())
			}
		})
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Port:        "0",
		DataDir:     dir,
		SourcesFile: filepath.Join("..", "..", "config", "sources.yaml"),
		Fetcher: config.FetcherConfig{
			Normal:      config.RateProfile{BaseDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2},
			MaxAttempts: 1,
		},
		Scheduler: config.SchedulerConfig{
			TickInterval:  time.Hour,
			Timezone:      "UTC",
			ExpectedSlate: 6,
			RetentionDays: 14,
		},
		Store: config.StoreConfig{Driver: config.DriverSQLite, DSN: filepath.Join(dir, "db", "ingest.db")},
	}
}

func TestNewWiresOpsRoutes(t *testing.T) {
	cfg := testConfig(t)
	srv, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	h := srv.Handler()
	testutil.AssertStatus(t, testutil.Serve(h, http.MethodGet, "/health", nil), http.StatusOK)
	testutil.AssertStatus(t, testutil.Serve(h, http.MethodGet, "/ready", nil), http.StatusOK)
	testutil.AssertStatus(t, testutil.Serve(h, http.MethodGet, "/status", nil), http.StatusOK)
	testutil.AssertStatus(t, testutil.Serve(h, http.MethodGet, "/plans/2026-10-18", nil), http.StatusNotFound)
	testutil.AssertStatus(t, testutil.Serve(h, http.MethodGet, "/dates/2026-10-18/games", nil), http.StatusOK)
	testutil.AssertStatus(t, testutil.Serve(h, http.MethodGet, "/games/unknown", nil), http.StatusNotFound)

	// A cancelled context drives Run straight through shutdown, releasing the store and watcher.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.Run(ctx, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if srv.Status().ConsecutiveFailures != 0 {
		t.Fatalf("expected idle poller status")
	}
}

func TestNewFailsWithoutSources(t *testing.T) {
	cfg := testConfig(t)
	cfg.SourcesFile = filepath.Join(cfg.DataDir, "missing.yaml")
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for missing sources file")
	}
}

func TestReconcileRulesOverlayDefaults(t *testing.T) {
	rules := reconcileRules(config.ReconcileConfig{Tolerance: 2})
	if rules.Tolerance != 2 || rules.MajorDelta != 5 || rules.CriticalRatio != 0.5 {
		t.Fatalf("unexpected rules %+v", rules)
	}
	rules = reconcileRules(config.ReconcileConfig{MajorDelta: 9, CriticalRatio: 0.25})
	if rules.MajorDelta != 9 || rules.CriticalRatio != 0.25 || len(rules.Structural) == 0 {
		t.Fatalf("unexpected rules %+v", rules)
	}
}

func TestCachePrunerDropsFinishedGameEntries(t *testing.T) {
	cache, err := fetcher.NewCache("")
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	for _, u := range []string{
		"https://stats.example.org/games/g1/pitches/0",
		"https://stats.example.org/games/g1/pitches/1",
		"https://stats.example.org/games/g2/pitches/0",
		"https://stats.example.org/schedule/2026-10-18",
	} {
		if err := cache.Put(u, fetcher.CacheEntry{ETag: `"v1"`}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	adapters := providers.NewTableAdapters([]config.SourceConfig{{
		Name: "gameday",
		URLs: map[string]string{config.KindEvents: "https://stats.example.org/games/{gameId}/pitches/{index}"},
	}})
	prune := cachePruner(cache, adapters, nil)

	prune(schedule.LiveTask{ID: "g1", Date: "2026-10-18"}, schedule.RemovedNoUpdates)
	if cache.Len() != 4 {
		t.Fatalf("expected inactivity removal to keep cache, got %d entries", cache.Len())
	}
	prune(schedule.LiveTask{ID: "g1", Date: "2026-10-18"}, schedule.RemovedFinished)
	if cache.Len() != 2 {
		t.Fatalf("expected g1 entries pruned, got %d entries", cache.Len())
	}
	if _, ok := cache.Get("https://stats.example.org/games/g2/pitches/0"); !ok {
		t.Fatalf("expected other games untouched")
	}
}
