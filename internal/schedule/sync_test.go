package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/config"
	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	"github.com/preston-bernstein/game-ingest-service/internal/providers"
	"github.com/preston-bernstein/game-ingest-service/internal/snapshots"
)

type fakeCollector struct {
	batches map[string]providers.Batch
	err     error
	calls   []string
	ctxErrs []error
}

func (c *fakeCollector) Collect(ctx context.Context, a providers.Adapter, kind string, vars map[string]string) (providers.Batch, error) {
	c.calls = append(c.calls, a.Name()+":"+vars["date"])
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	if c.err != nil {
		return providers.Batch{}, c.err
	}
	b, ok := c.batches[vars["date"]]
	if !ok {
		return providers.Batch{Source: a.Name(), Kind: kind}, nil
	}
	return b, nil
}

type fakeGames struct {
	upserted []domain.GameRecord
}

func (g *fakeGames) UpsertGames(_ context.Context, records []domain.GameRecord) error {
	g.upserted = append(g.upserted, records...)
	return nil
}

func scheduleAdapter(name, priority string) providers.Adapter {
	return providers.NewTableAdapter(config.SourceConfig{
		Name:     name,
		Priority: priority,
		URLs:     map[string]string{config.KindSchedule: "https://" + name + ".example/{date}"},
	})
}

func scheduleRow(id, start, status, competition string) domain.Row {
	return domain.Row{Fields: map[string]string{
		providers.FieldGameID:      id,
		providers.FieldStart:       start,
		providers.FieldStatus:      status,
		providers.FieldCompetition: competition,
	}}
}

type syncFixture struct {
	syncer    *Syncer
	collector *fakeCollector
	games     *fakeGames
	queue     *Queue
	writer    *snapshots.Writer
}

func newSyncFixture(t *testing.T, now time.Time) syncFixture {
	t.Helper()
	collector := &fakeCollector{batches: map[string]providers.Batch{
		"2026-10-18": {
			Source:    "gameday",
			FetchedAt: now,
			Rows: []domain.Row{
				scheduleRow("live", "16:00", "In Progress", "primary"),
				scheduleRow("soon", "17:20", "Scheduled", "secondary"),
				scheduleRow("tonight", "21:00", "Scheduled", "primary"),
				scheduleRow("done", "12:00", "Final", "primary"),
			},
		},
	}}
	games := &fakeGames{}
	writer := snapshots.NewWriter(t.TempDir(), 14, snapshots.WithClock(func() time.Time { return now }))
	planner := newTestPlanner(now)
	queue := NewQueue(QueueConfig{}, nil, nil)
	adapters := []providers.Adapter{scheduleAdapter("mirror", "secondary"), scheduleAdapter("gameday", "primary")}

	s := NewSyncer(adapters, collector, games, writer, planner, queue, SyncConfig{
		Enabled:          true,
		BackfillDays:     3,
		BackfillInterval: time.Nanosecond,
		LeadWindow:       30 * time.Minute,
	}, nil)
	s.now = func() time.Time { return now }
	return syncFixture{syncer: s, collector: collector, games: games, queue: queue, writer: writer}
}

func TestSyncDateSeedsQueueAndWritesDocuments(t *testing.T) {
	now := at(17, 0)
	f := newSyncFixture(t, now)

	sched, err := f.syncer.SyncDate(context.Background(), "2026-10-18")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if f.collector.calls[0] != "gameday:2026-10-18" {
		t.Fatalf("expected primary source tried first, got %v", f.collector.calls)
	}
	if len(sched.Events) != 4 || len(f.games.upserted) != 4 {
		t.Fatalf("expected 4 events upserted, got %d/%d", len(sched.Events), len(f.games.upserted))
	}

	tasks := f.queue.Tasks()
	if len(tasks) != 2 || tasks[0].ID != "live" || tasks[1].ID != "soon" {
		t.Fatalf("expected live and soon games queued, got %+v", tasks)
	}
	if !tasks[0].Live || !tasks[0].Primary || tasks[1].Live || tasks[1].Primary {
		t.Fatalf("unexpected task flags %+v", tasks)
	}

	store := snapshots.NewFSStore(f.writer.BasePath())
	if _, err := store.LoadSchedule("2026-10-18"); err != nil {
		t.Fatalf("expected schedule document: %v", err)
	}
	var plan DayPlan
	if err := store.LoadPlan("2026-10-18", &plan); err != nil {
		t.Fatalf("expected plan document: %v", err)
	}
	if plan.EventCount != 4 || !plan.HasEvents {
		t.Fatalf("unexpected stored plan %+v", plan)
	}
	if cached, ok := f.syncer.Plan("2026-10-18"); !ok || cached.EventCount != 4 {
		t.Fatalf("expected cached plan, got %+v ok=%v", cached, ok)
	}
}

func TestSyncDateNotModifiedReusesStoredSchedule(t *testing.T) {
	now := at(17, 0)
	f := newSyncFixture(t, now)
	if _, err := f.syncer.SyncDate(context.Background(), "2026-10-18"); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	f.collector.batches["2026-10-18"] = providers.Batch{Source: "gameday", NotModified: true}
	sched, err := f.syncer.SyncDate(context.Background(), "2026-10-18")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(sched.Events) != 4 {
		t.Fatalf("expected stored events reused, got %d", len(sched.Events))
	}
}

func TestSyncDateAllSourcesFail(t *testing.T) {
	f := newSyncFixture(t, at(17, 0))
	f.collector.err = errors.New("boom")
	if _, err := f.syncer.SyncDate(context.Background(), "2026-10-18"); err == nil {
		t.Fatalf("expected error when every source fails")
	}
	if len(f.collector.calls) != 2 {
		t.Fatalf("expected both sources tried, got %v", f.collector.calls)
	}
}

func TestBuildDatesSkipsStoredPastDays(t *testing.T) {
	f := newSyncFixture(t, at(17, 0))
	if err := f.writer.WriteSchedule("2026-10-16", domain.Schedule{}); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}
	if err := f.writer.WriteSchedule("2026-10-17", domain.Schedule{}); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	got := f.syncer.buildDates(at(17, 0))
	want := []string{"2026-10-17", "2026-10-15"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected backfill dates %v", got)
	}
}

func TestReplanFromStoredSchedule(t *testing.T) {
	f := newSyncFixture(t, at(17, 0))
	err := f.writer.WriteSchedule("2026-10-20", domain.Schedule{Events: []domain.ScheduledEvent{
		{GameID: "x", Start: time.Date(2026, 10, 20, 19, 0, 0, 0, time.UTC)},
	}})
	if err != nil {
		t.Fatalf("seed schedule: %v", err)
	}
	plan, err := f.syncer.Replan("2026-10-20")
	if err != nil {
		t.Fatalf("replan: %v", err)
	}
	if plan.EventCount != 1 || plan.Live == nil {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if _, err := f.syncer.Replan("2026-10-21"); err == nil {
		t.Fatalf("expected error without a stored schedule")
	}
}

func TestRunDisabledReturnsImmediately(t *testing.T) {
	s := NewSyncer(nil, nil, nil, nil, nil, nil, SyncConfig{Enabled: false}, nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	var nilSyncer *Syncer
	if err := nilSyncer.Run(context.Background()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newSyncFixture(t, at(17, 0))
	f.syncer.cfg.BackfillDays = 0
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.syncer.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := f.syncer.Plan("2026-10-18"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for initial sync")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop on cancel")
	}
}

func TestSyncTodayFinishesAfterCancel(t *testing.T) {
	f := newSyncFixture(t, at(17, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := f.syncer.syncToday(ctx)
	if !plan.HasEvents {
		t.Fatalf("expected today's sync to complete, got %+v", plan)
	}
	for i, err := range f.collector.ctxErrs {
		if err != nil {
			t.Fatalf("collect %d ran under a cancelled context: %v", i, err)
		}
	}
	if len(f.games.upserted) == 0 {
		t.Fatalf("expected games upserted")
	}
}

func TestSleepRespectsContext(t *testing.T) {
	s := NewSyncer(nil, nil, nil, nil, nil, nil, SyncConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	s.sleep(ctx, time.Second)
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("expected sleep to return quickly when context canceled")
	}
}
