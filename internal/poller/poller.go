// Package poller drives the live queue: one due game per tick, collected
// from every source, ingested, upserted and reconciled.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/preston-bernstein/game-ingest-service/internal/ingest"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
	"github.com/preston-bernstein/game-ingest-service/internal/providers"
	"github.com/preston-bernstein/game-ingest-service/internal/reconcile"
	"github.com/preston-bernstein/game-ingest-service/internal/schedule"
)

const defaultInterval = 15 * time.Second

// Poller advances the live queue on a ticker.
type Poller struct {
	queue      *schedule.Queue
	collector  schedule.Collector
	adapters   []providers.Adapter
	registry   *ingest.Registry
	store      RecordStore
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
	metrics    *metrics.Recorder
	interval   time.Duration
	now        func() time.Time

	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool
	busy     chan struct{}

	statusMu sync.RWMutex
	status   Status
}

// Status describes the recent health of the poller loop.
type Status struct {
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastError           string    `json:"lastError,omitempty"`
	LastAttempt         time.Time `json:"lastAttempt"`
	LastSuccess         time.Time `json:"lastSuccess"`
	LastTaskID          string    `json:"lastTaskId,omitempty"`
	QueueSize           int       `json:"queueSize"`
}

// IsReady reports whether the poller is not failing repeatedly. An idle
// poller with nothing queued is ready.
func (s Status) IsReady() bool {
	return s.ConsecutiveFailures < 3
}

// Deps groups the collaborators a poller drives.
type Deps struct {
	Queue      *schedule.Queue
	Collector  schedule.Collector
	Adapters   []providers.Adapter
	Registry   *ingest.Registry
	Store      RecordStore
	Reconciler *reconcile.Reconciler
	Logger     *slog.Logger
	Metrics    *metrics.Recorder
}

// New constructs a Poller with sane defaults.
func New(deps Deps, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		queue:      deps.Queue,
		collector:  deps.Collector,
		adapters:   deps.Adapters,
		registry:   deps.Registry,
		store:      deps.Store,
		reconciler: deps.Reconciler,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		interval:   interval,
		now:        time.Now,
		done:       make(chan struct{}),
		busy:       make(chan struct{}, 1),
	}
}

// Start begins polling until the context is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.startMu.Lock()
	if p.started {
		p.startMu.Unlock()
		return
	}
	p.started = true
	p.startMu.Unlock()

	p.ticker = time.NewTicker(p.interval)

	go func() {
		logging.Info(p.logger, "poller started", slog.Int64(logging.FieldDurationMS, p.interval.Milliseconds()))
		p.tick(ctx)

		for {
			select {
			case <-ctx.Done():
				p.stopTicker()
				logging.Info(p.logger, "poller stopped")
				return
			case <-p.done:
				p.stopTicker()
				logging.Info(p.logger, "poller stopped")
				return
			case <-p.ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight task, bounded by ctx.
func (p *Poller) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.done)
		p.stopTicker()
	})
	select {
	case p.busy <- struct{}{}:
		<-p.busy
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick runs at most one due task. The task runs detached from ctx so a
// shutdown signal lets the current fetch finish.
func (p *Poller) tick(ctx context.Context) {
	if ctx.Err() != nil || p.queue == nil {
		return
	}
	p.busy <- struct{}{}
	defer func() { <-p.busy }()
	select {
	case <-p.done:
		return
	default:
	}
	task, ok := p.queue.Next(p.now())
	if !ok {
		p.setQueueSize()
		return
	}

	cycleID := uuid.NewString()
	taskCtx := logging.WithLogger(context.WithoutCancel(ctx), p.loggerWith(
		logging.FieldCycleID, cycleID,
		logging.FieldTaskID, task.ID,
	))

	start := time.Now()
	p.recordAttempt(start, task.ID)
	outcome := p.process(taskCtx, task)
	p.metrics.RecordPollerCycle(time.Since(start), outcome.err)

	now := p.now()
	switch {
	case outcome.denied:
		p.queue.Remove(task.ID, schedule.RemovedDenied)
	default:
		p.queue.Complete(task.ID, now, outcome.updated)
	}

	if outcome.err != nil && !outcome.updated {
		logging.Ctx(taskCtx, p.logger, slog.LevelWarn, "live poll failed",
			"err", outcome.err,
			logging.FieldDurationMS, time.Since(start).Milliseconds(),
		)
		p.recordFailure(outcome.err, start)
	} else {
		p.recordSuccess(start)
		logging.Ctx(taskCtx, p.logger, slog.LevelInfo, "live poll finished",
			logging.FieldNewRows, outcome.newRows,
			"updated", outcome.updated,
			logging.FieldDurationMS, time.Since(start).Milliseconds(),
		)
	}
	p.setQueueSize()
}

func (p *Poller) loggerWith(args ...any) *slog.Logger {
	if p.logger == nil {
		return nil
	}
	return p.logger.With(args...)
}

func (p *Poller) stopTicker() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}

func (p *Poller) recordAttempt(at time.Time, taskID string) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.LastAttempt = at
	p.status.LastTaskID = taskID
}

func (p *Poller) recordSuccess(at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.ConsecutiveFailures = 0
	p.status.LastError = ""
	p.status.LastSuccess = at
}

func (p *Poller) recordFailure(err error, at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.ConsecutiveFailures++
	if err != nil {
		p.status.LastError = err.Error()
	}
	p.status.LastAttempt = at
}

func (p *Poller) setQueueSize() {
	size := p.queue.Len()
	p.statusMu.Lock()
	p.status.QueueSize = size
	p.statusMu.Unlock()
}

// Status returns a snapshot of the poller's recent health.
func (p *Poller) Status() Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}
