package schedule

import (
	"container/heap"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
)

// Removal reasons reported to metrics and logs.
const (
	RemovedNoUpdates = "no_updates"
	RemovedSilence   = "silence"
	RemovedDenied    = "policy_denied"
	RemovedFinished  = "finished"
)

const (
	defaultUpdateInterval    = time.Minute
	defaultMaxNoUpdateCycles = 30
	defaultMaxSilence        = 2 * time.Hour
)

// noUpdateSteps maps time since the last update onto the next check
// delay. The last step is the cap.
var noUpdateSteps = []struct {
	below time.Duration
	delay time.Duration
}{
	{5 * time.Minute, time.Minute},
	{15 * time.Minute, 2 * time.Minute},
	{30 * time.Minute, 5 * time.Minute},
	{60 * time.Minute, 10 * time.Minute},
}

const noUpdateCap = 15 * time.Minute

// NoUpdateInterval is the delay before re-checking a game that last
// changed sinceUpdate ago. It never decreases as sinceUpdate grows.
func NoUpdateInterval(sinceUpdate time.Duration) time.Duration {
	for _, step := range noUpdateSteps {
		if sinceUpdate < step.below {
			return step.delay
		}
	}
	return noUpdateCap
}

// LiveTask tracks polling of one game.
type LiveTask struct {
	ID                        string    `json:"id"`
	Date                      string    `json:"date"`
	Index                     int       `json:"index"`
	Live                      bool      `json:"live"`
	Primary                   bool      `json:"primary"`
	LastUpdateAt              time.Time `json:"lastUpdateAt"`
	ConsecutiveNoUpdateCycles int       `json:"consecutiveNoUpdateCycles"`
	NextCheckAt               time.Time `json:"nextCheckAt"`
}

// Rank orders tasks that are due at the same instant: live before
// scheduled, then primary before secondary. Lower runs first.
func (t LiveTask) Rank() int {
	rank := 0
	if !t.Live {
		rank += 2
	}
	if !t.Primary {
		rank++
	}
	return rank
}

func (t LiveTask) before(o LiveTask) bool {
	if !t.NextCheckAt.Equal(o.NextCheckAt) {
		return t.NextCheckAt.Before(o.NextCheckAt)
	}
	if t.Rank() != o.Rank() {
		return t.Rank() < o.Rank()
	}
	return t.ID < o.ID
}

// QueueConfig holds the removal ceilings and the post-update cadence.
type QueueConfig struct {
	UpdateInterval    time.Duration
	MaxNoUpdateCycles int
	MaxSilence        time.Duration
}

type taskHeap []*LiveTask

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].before(*h[j]) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(*LiveTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is the live priority queue. Next hands a due task out; the task
// is held in flight until Complete or Remove, so a game is never polled
// by two workers at once.
type Queue struct {
	cfg      QueueConfig
	logger   *slog.Logger
	recorder *metrics.Recorder

	mu       sync.Mutex
	pending  taskHeap
	inflight map[string]*LiveTask
	onRemove func(task LiveTask, reason string)
	removed  []removal
}

type removal struct {
	task   LiveTask
	reason string
}

// NewQueue constructs an empty queue; zero config values take defaults.
func NewQueue(cfg QueueConfig, logger *slog.Logger, recorder *metrics.Recorder) *Queue {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = defaultUpdateInterval
	}
	if cfg.MaxNoUpdateCycles <= 0 {
		cfg.MaxNoUpdateCycles = defaultMaxNoUpdateCycles
	}
	if cfg.MaxSilence <= 0 {
		cfg.MaxSilence = defaultMaxSilence
	}
	return &Queue{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		inflight: make(map[string]*LiveTask),
	}
}

// Add enqueues task, due at NextCheckAt (or now when unset). A task
// already queued keeps its cadence and counters; only its Live and
// Primary flags are refreshed. Reports whether the task is new.
func (q *Queue) Add(task LiveTask, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing := q.find(task.ID); existing != nil {
		existing.Live = task.Live
		existing.Primary = task.Primary
		heap.Init(&q.pending)
		return false
	}
	if task.NextCheckAt.IsZero() {
		task.NextCheckAt = now
	}
	if task.LastUpdateAt.IsZero() {
		task.LastUpdateAt = now
	}
	heap.Push(&q.pending, &task)
	logging.Debug(q.logger, "live task queued",
		logging.FieldTaskID, task.ID,
		"next_check_at", task.NextCheckAt,
		"rank", task.Rank(),
	)
	return true
}

// Next pops the highest priority task due at or before now.
func (q *Queue) Next(now time.Time) (LiveTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 || q.pending[0].NextCheckAt.After(now) {
		return LiveTask{}, false
	}
	task := heap.Pop(&q.pending).(*LiveTask)
	q.inflight[task.ID] = task
	return *task, true
}

// Complete reschedules an in-flight task. updated reports whether the
// poll produced new data. Returns false when the task was dropped for
// inactivity.
func (q *Queue) Complete(id string, now time.Time, updated bool) bool {
	q.mu.Lock()
	defer q.unlock()

	task, ok := q.inflight[id]
	if !ok {
		return false
	}
	delete(q.inflight, id)

	if updated {
		task.LastUpdateAt = now
		task.ConsecutiveNoUpdateCycles = 0
		task.NextCheckAt = now.Add(q.cfg.UpdateInterval)
		heap.Push(&q.pending, task)
		return true
	}

	task.ConsecutiveNoUpdateCycles++
	silence := now.Sub(task.LastUpdateAt)
	switch {
	case task.ConsecutiveNoUpdateCycles >= q.cfg.MaxNoUpdateCycles:
		q.dropped(task, RemovedNoUpdates)
		return false
	case silence >= q.cfg.MaxSilence:
		q.dropped(task, RemovedSilence)
		return false
	}
	task.NextCheckAt = now.Add(NoUpdateInterval(silence))
	heap.Push(&q.pending, task)
	return true
}

// Remove drops a task whether queued or in flight.
func (q *Queue) Remove(id, reason string) bool {
	q.mu.Lock()
	defer q.unlock()

	if task, ok := q.inflight[id]; ok {
		delete(q.inflight, id)
		q.dropped(task, reason)
		return true
	}
	for i, task := range q.pending {
		if task.ID == id {
			heap.Remove(&q.pending, i)
			q.dropped(task, reason)
			return true
		}
	}
	return false
}

// Len counts queued and in-flight tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.inflight)
}

// Tasks returns a copy of all tasks in dispatch order, in-flight first.
func (q *Queue) Tasks() []LiveTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	inflight := make([]LiveTask, 0, len(q.inflight))
	for _, t := range q.inflight {
		inflight = append(inflight, *t)
	}
	sort.Slice(inflight, func(i, j int) bool { return inflight[i].before(inflight[j]) })

	pending := make([]LiveTask, 0, len(q.pending))
	for _, t := range q.pending {
		pending = append(pending, *t)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].before(pending[j]) })
	return append(inflight, pending...)
}

func (q *Queue) find(id string) *LiveTask {
	if t, ok := q.inflight[id]; ok {
		return t
	}
	for _, t := range q.pending {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// OnRemove registers fn to run after every removal, once the queue lock
// has been released.
func (q *Queue) OnRemove(fn func(task LiveTask, reason string)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onRemove = fn
}

// unlock releases the queue and then runs the removal hook for every task
// dropped while it was held.
func (q *Queue) unlock() {
	removed := q.removed
	q.removed = nil
	fn := q.onRemove
	q.mu.Unlock()
	if fn == nil {
		return
	}
	for _, r := range removed {
		fn(r.task, r.reason)
	}
}

func (q *Queue) dropped(task *LiveTask, reason string) {
	q.removed = append(q.removed, removal{task: *task, reason: reason})
	q.recorder.RecordTaskRemoved(reason)
	logging.Info(q.logger, "live task removed",
		logging.FieldTaskID, task.ID,
		"reason", reason,
		"no_update_cycles", task.ConsecutiveNoUpdateCycles,
		"last_update_at", task.LastUpdateAt,
	)
}
