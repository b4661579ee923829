package schedule

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	"github.com/preston-bernstein/game-ingest-service/internal/jsonfile"
)

func TestWatcherReplansOnScheduleWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "schedules")
	dates := make(chan string, 4)
	w, err := NewWatcher(dir, func(date string) error {
		dates <- date
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	w.settle = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if _, err := jsonfile.Write(filepath.Join(dir, "2026-10-18.json"), domain.Schedule{Date: "2026-10-18"}); err != nil {
		t.Fatalf("write schedule: %v", err)
	}

	select {
	case got := <-dates:
		if got != "2026-10-18" {
			t.Fatalf("unexpected date %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for replan")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop")
	}
}

func TestWatcherIgnoresNonScheduleFiles(t *testing.T) {
	w := &Watcher{pending: map[string]*time.Timer{}, replan: func(string) error {
		t.Fatalf("replan should not be called")
		return nil
	}}
	w.handle(fsnotify.Event{Name: filepath.Join("x", "manifest.tmp"), Op: fsnotify.Create})
	w.handle(fsnotify.Event{Name: filepath.Join("x", "2026-10-18.json"), Op: fsnotify.Remove})
	if len(w.pending) != 0 {
		t.Fatalf("expected nothing pending")
	}
}
