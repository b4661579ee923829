package metrics

import (
	"sync"
	"time"
)

type originStats struct {
	attempts        int
	errors          int
	notModified     int
	rateLimitHits   int
	robotsDenials   int
	profileSwaps    int
	lastRetryAfter  time.Duration
	lastCallLatency time.Duration
}

// Recorder captures lightweight, in-memory metrics about fetches and the
// ingestion pipeline, and forwards them to OpenTelemetry when configured.
type Recorder struct {
	mu      sync.Mutex
	origins map[string]*originStats
	counts  map[string]int
	otel    *otelInstruments
}

func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *otelInstruments) *Recorder {
	return &Recorder{
		origins: make(map[string]*originStats),
		counts:  make(map[string]int),
		otel:    otel,
	}
}

// RecordFetchAttempt counts one HTTP attempt against an origin.
// outcome is one of the Outcome* constants.
func (r *Recorder) RecordFetchAttempt(origin, outcome string, duration time.Duration) {
	if r == nil {
		return
	}

	r.withOrigin(origin, func(stats *originStats) {
		stats.attempts++
		stats.lastCallLatency = duration
		switch outcome {
		case OutcomeNotModified:
			stats.notModified++
		case OutcomeRetry, OutcomeFailed:
			stats.errors++
		}
	})
	if r.otel != nil {
		r.otel.recordFetchAttempt(origin, outcome, duration)
	}
}

// RecordRateLimit tracks a 429/503 and the Retry-After the server asked for.
func (r *Recorder) RecordRateLimit(origin string, retryAfter time.Duration) {
	if r == nil {
		return
	}

	r.withOrigin(origin, func(stats *originStats) {
		stats.rateLimitHits++
		if retryAfter > 0 {
			stats.lastRetryAfter = retryAfter
		}
	})
	if r.otel != nil {
		r.otel.recordRateLimit(origin, retryAfter)
	}
}

// RecordRobotsDenied tracks a request refused by robots.txt.
func (r *Recorder) RecordRobotsDenied(origin string) {
	if r == nil {
		return
	}
	r.withOrigin(origin, func(stats *originStats) { stats.robotsDenials++ })
	if r.otel != nil {
		r.otel.recordCounter(r.otel.robotsDenials, 1, originAttr(origin))
	}
}

// RecordProfileSwap tracks the one-way switch to the conservative profile.
func (r *Recorder) RecordProfileSwap(origin string) {
	if r == nil {
		return
	}
	r.withOrigin(origin, func(stats *originStats) { stats.profileSwaps++ })
	if r.otel != nil {
		r.otel.recordCounter(r.otel.profileSwaps, 1, originAttr(origin))
	}
}

// RecordIngest tracks rows seen and appended for a source.
func (r *Recorder) RecordIngest(source string, newRows, totalRows int) {
	if r == nil {
		return
	}
	r.add("ingest_new_rows", newRows)
	r.add("ingest_total_rows", totalRows)
	if r.otel != nil {
		r.otel.recordIngest(source, newRows, totalRows)
	}
}

// RecordTaskRemoved tracks a live task leaving the queue.
func (r *Recorder) RecordTaskRemoved(reason string) {
	if r == nil {
		return
	}
	r.add("tasks_removed", 1)
	if r.otel != nil {
		r.otel.recordCounter(r.otel.tasksRemoved, 1, reasonAttr(reason))
	}
}

// RecordReconciliation tracks one validation and the recommendation it produced.
func (r *Recorder) RecordReconciliation(recommendation string, inconsistencies int) {
	if r == nil {
		return
	}
	r.add("reconciliations", 1)
	r.add("reconcile_"+recommendation, 1)
	if r.otel != nil {
		r.otel.recordReconciliation(recommendation, inconsistencies)
	}
}

// RecordUpsert tracks a store batch for an entity.
func (r *Recorder) RecordUpsert(entity string, rows int, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.add("store_failures", 1)
	} else {
		r.add("store_rows", rows)
	}
	if r.otel != nil {
		r.otel.recordUpsert(entity, rows, err)
	}
}

// Count returns an aggregate counter such as "ingest_new_rows" or "reconcile_combine".
func (r *Recorder) Count(name string) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// Snapshot is a copy of the current stats for one origin.
type Snapshot struct {
	Attempts        int
	Errors          int
	NotModified     int
	RateLimitHits   int
	RobotsDenials   int
	ProfileSwaps    int
	LastRetryAfter  time.Duration
	LastCallLatency time.Duration
}

func (r *Recorder) Snapshot(origin string) Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.origins[origin]
	if !ok || stats == nil {
		return Snapshot{}
	}
	return Snapshot{
		Attempts:        stats.attempts,
		Errors:          stats.errors,
		NotModified:     stats.notModified,
		RateLimitHits:   stats.rateLimitHits,
		RobotsDenials:   stats.robotsDenials,
		ProfileSwaps:    stats.profileSwaps,
		LastRetryAfter:  stats.lastRetryAfter,
		LastCallLatency: stats.lastCallLatency,
	}
}

// RecordHTTPRequest tracks basic HTTP metrics.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil || r.otel == nil {
		return
	}
	r.otel.recordHTTPRequest(method, path, status, duration)
}

// RecordPollerCycle tracks live loop ticks and errors.
func (r *Recorder) RecordPollerCycle(duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.add("poller_cycles", 1)
	if err != nil {
		r.add("poller_errors", 1)
	}
	if r.otel != nil {
		r.otel.recordPoller(duration, err)
	}
}

func (r *Recorder) withOrigin(origin string, fn func(*originStats)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.origins[origin]
	if !ok {
		stats = &originStats{}
		r.origins[origin] = stats
	}
	fn(stats)
}

func (r *Recorder) add(name string, delta int) {
	r.mu.Lock()
	r.counts[name] += delta
	r.mu.Unlock()
}
