package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/snapshots"
)

const defaultSettleDelay = 250 * time.Millisecond

// Watcher regenerates a day plan whenever that date's schedule document
// changes on disk, whoever wrote it.
type Watcher struct {
	dir     string
	replan  func(date string) error
	logger  *slog.Logger
	settle  time.Duration
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewWatcher watches dir (created if missing) and calls replan with the
// date of every settled schedule write.
func NewWatcher(dir string, replan func(date string) error, logger *slog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create schedule dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:     filepath.Clean(dir),
		replan:  replan,
		logger:  logger,
		settle:  defaultSettleDelay,
		watcher: fw,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Run processes events until ctx is done, then releases the watch.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()
	logging.Info(w.logger, "schedule watcher started", logging.FieldPath, w.dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(w.logger, "schedule watcher error", "err", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	date := snapshots.DateFromPath(event.Name)
	if date == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[date]; ok && timer.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.pending[date] = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.fire(date)
	})
}

func (w *Watcher) fire(date string) {
	w.mu.Lock()
	delete(w.pending, date)
	w.mu.Unlock()

	if err := w.replan(date); err != nil {
		logging.Warn(w.logger, "replan after schedule change failed", logging.FieldDate, date, "err", err)
		return
	}
	logging.Info(w.logger, "day plan regenerated", logging.FieldDate, date)
}

func (w *Watcher) close() {
	w.mu.Lock()
	for date, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, date)
	}
	w.mu.Unlock()
	w.wg.Wait()
	_ = w.watcher.Close()
}
