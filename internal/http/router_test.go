package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/app/games"
	"github.com/preston-bernstein/game-ingest-service/internal/fetcher"
	"github.com/preston-bernstein/game-ingest-service/internal/http/handlers"
	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
	"github.com/preston-bernstein/game-ingest-service/internal/poller"
	"github.com/preston-bernstein/game-ingest-service/internal/schedule"
	"github.com/preston-bernstein/game-ingest-service/internal/testutil"
)

type plansStub map[string]schedule.DayPlan

func (p plansStub) Plan(date string) (schedule.DayPlan, bool) {
	plan, ok := p[date]
	return plan, ok
}

type gamesStub struct {
	list   []games.Game
	detail map[string]games.Detail
	err    error
}

func (g gamesStub) GamesOn(context.Context, string) ([]games.Game, error) {
	return g.list, g.err
}

func (g gamesStub) Detail(_ context.Context, id string) (games.Detail, bool, error) {
	d, ok := g.detail[id]
	return d, ok, g.err
}

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

func newTestRouter(deps handlers.Deps, metricsHandler nethttp.Handler) nethttp.Handler {
	return NewRouter(handlers.NewHandler(deps), nil, metrics.NewRecorder(), metricsHandler)
}

func serve(h nethttp.Handler, method, path string) *httptest.ResponseRecorder {
	return testutil.Serve(h, method, path, nil)
}

func TestHealthSetsRequestIDAndLogs(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	rec := metrics.NewRecorder()
	router := NewRouter(handlers.NewHandler(handlers.Deps{Logger: logger}), logger, rec, nil)

	rr := serve(router, nethttp.MethodGet, "/health")
	testutil.AssertStatus(t, rr, nethttp.StatusOK)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
	if !strings.Contains(buf.String(), "request complete") || !strings.Contains(buf.String(), "path=/health") {
		t.Fatalf("expected request log line, got %q", buf.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rr := serve(newTestRouter(handlers.Deps{}, nil), nethttp.MethodPost, "/health")
	if rr.Code != nethttp.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestReady(t *testing.T) {
	cases := []struct {
		name   string
		deps   handlers.Deps
		status int
	}{
		{"no deps", handlers.Deps{}, nethttp.StatusOK},
		{"healthy", handlers.Deps{
			Store:        pingStub{},
			PollerStatus: func() poller.Status { return poller.Status{} },
		}, nethttp.StatusOK},
		{"store down", handlers.Deps{Store: pingStub{err: errors.New("closed")}}, nethttp.StatusServiceUnavailable},
		{"poller failing", handlers.Deps{
			PollerStatus: func() poller.Status { return poller.Status{ConsecutiveFailures: 5, LastError: "boom"} },
		}, nethttp.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(newTestRouter(tc.deps, nil), nethttp.MethodGet, "/ready")
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestReadyErrorCarriesMessage(t *testing.T) {
	deps := handlers.Deps{PollerStatus: func() poller.Status { return poller.Status{ConsecutiveFailures: 3, LastError: "upstream 502"} }}
	rr := serve(newTestRouter(deps, nil), nethttp.MethodGet, "/ready")
	var body map[string]string
	testutil.DecodeJSON(t, rr, &body)
	if body["error"] != "upstream 502" || body["requestId"] == "" {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestStatus(t *testing.T) {
	deps := handlers.Deps{
		PollerStatus:  func() poller.Status { return poller.Status{ConsecutiveFailures: 1, QueueSize: 2} },
		FetcherStatus: func() fetcher.Status { return fetcher.Status{Profile: "conservative", CacheEntries: 4} },
		Tasks: func() []schedule.LiveTask {
			return []schedule.LiveTask{{ID: "g1", Live: true}, {ID: "g2"}}
		},
	}
	rr := serve(newTestRouter(deps, nil), nethttp.MethodGet, "/status")
	if rr.Code != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body handlers.StatusResponse
	testutil.DecodeJSON(t, rr, &body)
	if body.Queue.Size != 2 || body.Queue.Tasks[0].ID != "g1" {
		t.Fatalf("unexpected queue %+v", body.Queue)
	}
	if body.Fetcher == nil || body.Fetcher.Profile != "conservative" || body.Poller == nil || body.Poller.ConsecutiveFailures != 1 {
		t.Fatalf("unexpected status body %+v", body)
	}
}

func TestPlans(t *testing.T) {
	today := time.Now().UTC().Format("2006-01-02")
	plans := plansStub{
		"2026-10-18": {Date: "2026-10-18", EventCount: 3, HasEvents: true},
		today:        {Date: today},
	}
	router := newTestRouter(handlers.Deps{Plans: plans, Location: time.UTC}, nil)

	cases := []struct {
		path   string
		status int
		date   string
	}{
		{"/plans/2026-10-18", nethttp.StatusOK, "2026-10-18"},
		{"/plans/today", nethttp.StatusOK, today},
		{"/plans/2026-01-01", nethttp.StatusNotFound, ""},
		{"/plans/18-10-2026", nethttp.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		rr := serve(router, nethttp.MethodGet, tc.path)
		if rr.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.status, rr.Code)
		}
		if tc.date == "" {
			continue
		}
		var plan schedule.DayPlan
		testutil.DecodeJSON(t, rr, &plan)
		if plan.Date != tc.date {
			t.Fatalf("%s: unexpected plan date %q", tc.path, plan.Date)
		}
	}
}

func TestPlansWithoutPlanner(t *testing.T) {
	rr := serve(newTestRouter(handlers.Deps{}, nil), nethttp.MethodGet, "/plans/2026-10-18")
	if rr.Code != nethttp.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMetricsMount(t *testing.T) {
	metricsHandler := nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		_, _ = w.Write([]byte("ok_metric 1\n"))
	})
	rr := serve(newTestRouter(handlers.Deps{}, metricsHandler), nethttp.MethodGet, "/metrics")
	if rr.Code != nethttp.StatusOK || rr.Body.String() != "ok_metric 1\n" {
		t.Fatalf("unexpected metrics response %d %q", rr.Code, rr.Body.String())
	}

	rr = serve(newTestRouter(handlers.Deps{}, nil), nethttp.MethodGet, "/metrics")
	if rr.Code != nethttp.StatusNotFound {
		t.Fatalf("expected 404 without metrics handler, got %d", rr.Code)
	}
}

func TestGamesRoutes(t *testing.T) {
	reader := gamesStub{
		list:   []games.Game{{ID: "g1"}, {ID: "g2"}},
		detail: map[string]games.Detail{"g1": {Game: games.Game{ID: "g1"}, SubEvents: []games.SubEvent{{Index: 1, Sequence: 1}}}},
	}
	router := newTestRouter(handlers.Deps{Games: reader}, nil)

	rr := serve(router, nethttp.MethodGet, "/dates/2026-10-18/games")
	testutil.AssertStatus(t, rr, nethttp.StatusOK)
	var list struct {
		Date  string       `json:"date"`
		Games []games.Game `json:"games"`
	}
	testutil.DecodeJSON(t, rr, &list)
	if list.Date != "2026-10-18" || len(list.Games) != 2 {
		t.Fatalf("unexpected list %+v", list)
	}

	rr = serve(router, nethttp.MethodGet, "/games/g1")
	testutil.AssertStatus(t, rr, nethttp.StatusOK)
	var detail games.Detail
	testutil.DecodeJSON(t, rr, &detail)
	if detail.Game.ID != "g1" || len(detail.SubEvents) != 1 {
		t.Fatalf("unexpected detail %+v", detail)
	}

	testutil.AssertStatus(t, serve(router, nethttp.MethodGet, "/games/missing"), nethttp.StatusNotFound)
	testutil.AssertStatus(t, serve(router, nethttp.MethodGet, "/dates/bad/games"), nethttp.StatusBadRequest)
}

func TestGamesRoutesErrors(t *testing.T) {
	router := newTestRouter(handlers.Deps{Games: gamesStub{err: errors.New("db down")}}, nil)
	testutil.AssertStatus(t, serve(router, nethttp.MethodGet, "/dates/today/games"), nethttp.StatusInternalServerError)
	testutil.AssertStatus(t, serve(router, nethttp.MethodGet, "/games/g1"), nethttp.StatusInternalServerError)

	router = newTestRouter(handlers.Deps{}, nil)
	testutil.AssertStatus(t, serve(router, nethttp.MethodGet, "/games/g1"), nethttp.StatusServiceUnavailable)
}
