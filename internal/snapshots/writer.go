// Package snapshots persists the derived JSON documents: day plans,
// schedules and reconciliation archives, with a manifest and rolling retention.
package snapshots

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	"github.com/preston-bernstein/game-ingest-service/internal/jsonfile"
	"github.com/preston-bernstein/game-ingest-service/internal/timeutil"
)

// Writer persists documents and keeps the manifest current.
type Writer struct {
	basePath      string
	retentionDays int
	now           func() time.Time
	mu            sync.Mutex
}

// Option customizes a Writer.
type Option func(*Writer)

// WithClock sets the clock retention is measured against.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWriter constructs a writer rooted at basePath with a rolling window retention.
func NewWriter(basePath string, retentionDays int, opts ...Option) *Writer {
	if retentionDays <= 0 {
		retentionDays = 14
	}
	w := &Writer{
		basePath:      basePath,
		retentionDays: retentionDays,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// BasePath exposes the writer root path.
func (w *Writer) BasePath() string {
	if w == nil {
		return ""
	}
	return w.basePath
}

// WritePlan writes the day plan for date and prunes expired plans.
func (w *Writer) WritePlan(date string, plan any) error {
	return w.writeDated(kindPlans, date, plan)
}

// WriteSchedule writes the schedule for date, sorted by start then id.
func (w *Writer) WriteSchedule(date string, schedule domain.Schedule) error {
	if schedule.Date == "" {
		schedule.Date = date
	}
	sort.SliceStable(schedule.Events, func(i, j int) bool {
		a, b := schedule.Events[i], schedule.Events[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.GameID < b.GameID
	})
	return w.writeDated(kindSchedules, date, schedule)
}

// WriteValidation archives a reconciliation result under validations/{gameId}.json.
func (w *Writer) WriteValidation(gameID string, result any) error {
	if w == nil {
		return errors.New("snapshot writer not configured")
	}
	if gameID == "" {
		return errors.New("game id required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := jsonfile.Write(ValidationPath(w.basePath, gameID), result); err != nil {
		return err
	}
	now := w.now().UTC()
	m, _ := readManifest(manifestPath(w.basePath), w.retentionDays, now)
	entries, _ := os.ReadDir(filepath.Join(w.basePath, string(kindValidations)))
	m.Validations.Count = len(entries)
	m.Validations.LastRefreshed = now
	return writeManifest(w.basePath, m, now)
}

func (w *Writer) writeDated(kind snapshotKind, date string, payload any) error {
	if w == nil {
		return errors.New("snapshot writer not configured")
	}
	if _, err := timeutil.ParseDate(date); err != nil {
		return errors.New("date required in YYYY-MM-DD form")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := jsonfile.Write(w.datedPath(kind, date), payload); err != nil {
		return err
	}
	return w.updateManifest(kind, date)
}

func (w *Writer) datedPath(kind snapshotKind, date string) string {
	if kind == kindSchedules {
		return SchedulePath(w.basePath, date)
	}
	return PlanPath(w.basePath, date)
}

func (w *Writer) updateManifest(kind snapshotKind, date string) error {
	now := w.now().UTC()
	m, _ := readManifest(manifestPath(w.basePath), w.retentionDays, now)

	dates, err := w.listDates(kind)
	if err != nil {
		return err
	}
	if !containsDate(dates, date) {
		dates = append(dates, date)
	}
	pruned := w.pruneOld(kind, dates, now)

	meta := DatedMeta{Dates: pruned, LastRefreshed: now}
	switch kind {
	case kindPlans:
		m.Plans = meta
	case kindSchedules:
		m.Schedules = meta
	}
	m.Retention.Days = w.retentionDays
	return writeManifest(w.basePath, m, now)
}

func containsDate(dates []string, date string) bool {
	for _, d := range dates {
		if d == date {
			return true
		}
	}
	return false
}

func (w *Writer) listDates(kind snapshotKind) ([]string, error) {
	dir := filepath.Join(w.basePath, string(kind))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var dates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if date := DateFromPath(e.Name()); date != "" {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

func (w *Writer) pruneOld(kind snapshotKind, dates []string, now time.Time) []string {
	cutoff := timeutil.StartOfDay(now).AddDate(0, 0, -w.retentionDays)
	var keep []string
	for _, d := range dates {
		parsed, err := timeutil.ParseDate(d)
		if err != nil {
			keep = append(keep, d)
			continue
		}
		if parsed.Before(cutoff) {
			_ = os.Remove(w.datedPath(kind, d))
			continue
		}
		keep = append(keep, d)
	}
	sort.Strings(keep)
	return keep
}
