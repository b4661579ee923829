package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestRecorderTracksFetchOutcomes(t *testing.T) {
	rec := NewRecorder()
	rec.RecordFetchAttempt("https://stats.example.org", OutcomeOK, 10*time.Millisecond)
	rec.RecordFetchAttempt("https://stats.example.org", OutcomeRetry, 12*time.Millisecond)
	rec.RecordFetchAttempt("https://stats.example.org", OutcomeNotModified, 15*time.Millisecond)

	snap := rec.Snapshot("https://stats.example.org")
	if snap.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", snap.Attempts)
	}
	if snap.Errors != 1 {
		t.Fatalf("expected 1 error, got %d", snap.Errors)
	}
	if snap.NotModified != 1 {
		t.Fatalf("expected 1 not-modified, got %d", snap.NotModified)
	}
	if snap.LastCallLatency != 15*time.Millisecond {
		t.Fatalf("expected last latency to be 15ms, got %s", snap.LastCallLatency)
	}
}

func TestRecorderTracksRateLimitsAndPolicy(t *testing.T) {
	rec := NewRecorder()
	origin := "https://mirror.example.net"
	rec.RecordRateLimit(origin, 5*time.Second)
	rec.RecordRateLimit(origin, 0)
	rec.RecordProfileSwap(origin)
	rec.RecordRobotsDenied(origin)

	snap := rec.Snapshot(origin)
	if snap.RateLimitHits != 2 {
		t.Fatalf("expected 2 rate limit hits, got %d", snap.RateLimitHits)
	}
	if snap.LastRetryAfter != 5*time.Second {
		t.Fatalf("expected last retry-after to be 5s, got %s", snap.LastRetryAfter)
	}
	if snap.ProfileSwaps != 1 || snap.RobotsDenials != 1 {
		t.Fatalf("unexpected policy counters %+v", snap)
	}
}

func TestRecorderAggregateCounts(t *testing.T) {
	rec := NewRecorder()
	rec.RecordIngest("gameday", 3, 3)
	rec.RecordIngest("gameday", 1, 4)
	rec.RecordReconciliation("combine", 2)
	rec.RecordUpsert("sub_event", 4, nil)
	rec.RecordUpsert("sub_event", 4, errors.New("locked"))
	rec.RecordTaskRemoved("silence")
	rec.RecordPollerCycle(time.Millisecond, errors.New("boom"))

	cases := map[string]int{
		"ingest_new_rows":   4,
		"ingest_total_rows": 7,
		"reconciliations":   1,
		"reconcile_combine": 1,
		"store_rows":        4,
		"store_failures":    1,
		"tasks_removed":     1,
		"poller_cycles":     1,
		"poller_errors":     1,
	}
	for name, want := range cases {
		if got := rec.Count(name); got != want {
			t.Fatalf("%s: expected %d, got %d", name, want, got)
		}
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.RecordFetchAttempt("x", OutcomeOK, 0)
	rec.RecordIngest("x", 1, 1)
	if rec.Count("ingest_new_rows") != 0 {
		t.Fatalf("expected zero from nil recorder")
	}
	if (rec.Snapshot("x") != Snapshot{}) {
		t.Fatalf("expected empty snapshot from nil recorder")
	}
}
