package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/config"
	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	"github.com/preston-bernstein/game-ingest-service/internal/jsonfile"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/providers"
	"github.com/preston-bernstein/game-ingest-service/internal/snapshots"
	"github.com/preston-bernstein/game-ingest-service/internal/timeutil"
)

// Collector runs one fetch+parse cycle for an adapter.
type Collector interface {
	Collect(ctx context.Context, a providers.Adapter, kind string, vars map[string]string) (providers.Batch, error)
}

// GameStore receives canonical game rows.
type GameStore interface {
	UpsertGames(ctx context.Context, records []domain.GameRecord) error
}

// SyncConfig controls schedule sync behavior.
type SyncConfig struct {
	Enabled          bool
	BackfillDays     int
	BackfillInterval time.Duration
	DailyHour        int
	LeadWindow       time.Duration
}

// Syncer keeps schedules, day plans and the live queue current.
type Syncer struct {
	adapters  []providers.Adapter
	collector Collector
	games     GameStore
	writer    *snapshots.Writer
	reader    *snapshots.FSStore
	planner   *Planner
	queue     *Queue
	cfg       SyncConfig
	logger    *slog.Logger
	now       func() time.Time
	newTicker func(time.Duration) *time.Ticker

	mu    sync.RWMutex
	plans map[string]DayPlan
}

// NewSyncer constructs a schedule syncer. Adapters are tried in order
// with primary sources first.
func NewSyncer(adapters []providers.Adapter, collector Collector, games GameStore, writer *snapshots.Writer, planner *Planner, queue *Queue, cfg SyncConfig, logger *slog.Logger) *Syncer {
	if cfg.BackfillDays < 0 {
		cfg.BackfillDays = 0
	}
	if cfg.BackfillInterval <= 0 {
		cfg.BackfillInterval = time.Minute
	}
	if cfg.DailyHour < 0 || cfg.DailyHour > 23 {
		cfg.DailyHour = 6
	}
	ordered := make([]providers.Adapter, 0, len(adapters))
	for _, a := range adapters {
		if a.Primary() {
			ordered = append(ordered, a)
		}
	}
	for _, a := range adapters {
		if !a.Primary() {
			ordered = append(ordered, a)
		}
	}
	s := &Syncer{
		adapters:  ordered,
		collector: collector,
		games:     games,
		writer:    writer,
		planner:   planner,
		queue:     queue,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newTicker: time.NewTicker,
		plans:     make(map[string]DayPlan),
	}
	if writer != nil {
		s.reader = snapshots.NewFSStore(writer.BasePath())
	}
	return s
}

// SyncConfigFrom maps scheduler settings onto a SyncConfig.
func SyncConfigFrom(cfg config.SchedulerConfig) SyncConfig {
	return SyncConfig{
		Enabled:          cfg.SyncEnabled,
		BackfillDays:     cfg.BackfillDays,
		BackfillInterval: cfg.BackfillInterval,
		DailyHour:        cfg.DailyHour,
		LeadWindow:       cfg.LeadWindow,
	}
}

// Run syncs today, backfills missing past days and then re-syncs today
// at the cadence its DayPlan prescribes until ctx is done. A sync already
// under way when ctx is cancelled runs to completion.
func (s *Syncer) Run(ctx context.Context) error {
	if s == nil || !s.cfg.Enabled || s.collector == nil || s.planner == nil {
		return nil
	}
	logging.Info(s.logger, "schedule sync starting",
		"backfill_days", s.cfg.BackfillDays,
		"interval", s.cfg.BackfillInterval.String(),
		"daily_hour", s.cfg.DailyHour,
		"lead_window", s.cfg.LeadWindow.String(),
	)

	plan := s.syncToday(ctx)
	s.backfill(ctx, s.now())

	hourly := s.newTicker(time.Hour)
	defer hourly.Stop()
	next := s.nextSync(plan)
	for {
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			logging.Info(s.logger, "schedule sync stopped")
			return nil
		case now := <-hourly.C:
			timer.Stop()
			if now.In(s.planner.Location()).Hour() == s.cfg.DailyHour {
				s.backfill(ctx, s.now())
			}
		case <-timer.C:
			plan = s.syncToday(ctx)
			next = s.nextSync(plan)
		}
	}
}

func (s *Syncer) nextSync(plan DayPlan) time.Time {
	now := s.now()
	return now.Add(plan.IntervalAt(now))
}

func (s *Syncer) syncToday(ctx context.Context) DayPlan {
	today := s.today()
	if _, err := s.SyncDate(context.WithoutCancel(ctx), today); err != nil {
		logging.Warn(s.logger, "schedule sync failed", logging.FieldDate, today, "err", err)
	}
	plan, ok := s.Plan(today)
	if !ok {
		plan, _ = s.planner.PlanFor(today, nil)
	}
	return plan
}

func (s *Syncer) backfill(ctx context.Context, now time.Time) {
	dates := s.buildDates(now)
	for i, date := range dates {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := s.SyncDate(context.WithoutCancel(ctx), date); err != nil {
			logging.Warn(s.logger, "schedule backfill failed", logging.FieldDate, date, "err", err)
		}
		if i < len(dates)-1 {
			s.sleep(ctx, s.cfg.BackfillInterval)
		}
	}
}

// buildDates lists past days whose schedule is missing; yesterday is
// always refreshed to capture final statuses.
func (s *Syncer) buildDates(now time.Time) []string {
	local := now.In(s.planner.Location())
	var dates []string
	for i := 1; i <= s.cfg.BackfillDays; i++ {
		date := timeutil.FormatDate(local.AddDate(0, 0, -i))
		if i == 1 || !s.hasSchedule(date) {
			dates = append(dates, date)
		}
	}
	return dates
}

// SyncDate fetches the schedule for date, upserts its games, writes the
// schedule and plan documents and, for today, seeds the live queue. A
// 304 reuses the stored schedule.
func (s *Syncer) SyncDate(ctx context.Context, date string) (domain.Schedule, error) {
	start := time.Now()
	sched, err := s.collect(ctx, date)
	if err != nil {
		return domain.Schedule{}, err
	}

	if len(sched.Events) > 0 && s.games != nil {
		if err := s.games.UpsertGames(ctx, gameRecords(sched)); err != nil {
			logging.Warn(s.logger, "schedule game upsert failed", logging.FieldDate, date, "err", err)
		}
	}
	if s.writer != nil {
		if err := s.writer.WriteSchedule(date, sched); err != nil {
			logging.Warn(s.logger, "schedule write failed", logging.FieldDate, date, "err", err)
		}
	}
	if _, err := s.replan(date, sched.Events); err != nil {
		return sched, err
	}
	if date == s.today() {
		s.seed(sched.Events)
	}
	logging.Info(s.logger, "schedule synced",
		logging.FieldDate, date,
		logging.FieldSource, sched.Source,
		logging.FieldCount, len(sched.Events),
		logging.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return sched, nil
}

func (s *Syncer) collect(ctx context.Context, date string) (domain.Schedule, error) {
	vars := providers.Vars(date, "", -1)
	var errs []error
	for _, a := range s.adapters {
		if _, ok := a.URL(config.KindSchedule, vars); !ok {
			continue
		}
		batch, err := s.collector.Collect(ctx, a, config.KindSchedule, vars)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if batch.NotModified {
			if stored, err := s.loadSchedule(date); err == nil {
				return stored, nil
			}
			continue
		}
		events := providers.EventsFromRows(batch.Rows, a.Name(), date, s.planner.Location())
		return domain.NewSchedule(date, a.Name(), batch.FetchedAt, events), nil
	}
	if len(errs) == 0 {
		return domain.Schedule{}, errors.New("no source serves schedules")
	}
	return domain.Schedule{}, errors.Join(errs...)
}

// Replan regenerates the plan for date from the stored schedule document.
func (s *Syncer) Replan(date string) (DayPlan, error) {
	sched, err := s.loadSchedule(date)
	if err != nil {
		return DayPlan{}, err
	}
	return s.replan(date, sched.Events)
}

func (s *Syncer) replan(date string, events []domain.ScheduledEvent) (DayPlan, error) {
	plan, err := s.planner.PlanFor(date, events)
	if err != nil {
		return DayPlan{}, err
	}
	s.mu.Lock()
	s.plans[date] = plan
	s.pruneLocked()
	s.mu.Unlock()

	if s.writer != nil {
		if err := s.writer.WritePlan(date, plan); err != nil {
			logging.Warn(s.logger, "day plan write failed", logging.FieldDate, date, "err", err)
		}
	}
	logging.Debug(s.logger, "day plan generated",
		logging.FieldDate, date,
		logging.FieldCount, plan.EventCount,
		"confidence", plan.Confidence,
	)
	return plan, nil
}

// Plan returns the current plan for date, from memory or the plan document.
func (s *Syncer) Plan(date string) (DayPlan, bool) {
	s.mu.RLock()
	plan, ok := s.plans[date]
	s.mu.RUnlock()
	if ok {
		return plan, true
	}
	if s.reader == nil {
		return DayPlan{}, false
	}
	if err := s.reader.LoadPlan(date, &plan); err != nil {
		return DayPlan{}, false
	}
	return plan, true
}

// seed enqueues games that are live or start within the lead window and
// drops tasks for games that have ended.
func (s *Syncer) seed(events []domain.ScheduledEvent) {
	if s.queue == nil {
		return
	}
	now := s.now()
	for _, ev := range events {
		if !ev.Status.Active() {
			s.queue.Remove(ev.GameID, RemovedFinished)
			continue
		}
		live := ev.Status == domain.StatusInProgress
		if !live && ev.Start.Sub(now) > s.cfg.LeadWindow {
			continue
		}
		s.queue.Add(LiveTask{
			ID:      ev.GameID,
			Date:    ev.Date,
			Live:    live,
			Primary: ev.Competition == domain.CompetitionPrimary,
		}, now)
	}
}

// pruneLocked keeps only plans inside the last week.
func (s *Syncer) pruneLocked() {
	cutoff := timeutil.FormatDate(s.now().In(s.planner.Location()).AddDate(0, 0, -7))
	for date := range s.plans {
		if date < cutoff {
			delete(s.plans, date)
		}
	}
}

func (s *Syncer) today() string {
	return timeutil.FormatDate(s.now().In(s.planner.Location()))
}

func (s *Syncer) loadSchedule(date string) (domain.Schedule, error) {
	if s.reader == nil {
		return domain.Schedule{}, errors.New("schedule store not configured")
	}
	return s.reader.LoadSchedule(date)
}

func (s *Syncer) hasSchedule(date string) bool {
	if s.writer == nil || s.writer.BasePath() == "" {
		return false
	}
	return jsonfile.Exists(snapshots.SchedulePath(s.writer.BasePath(), date))
}

func (s *Syncer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func gameRecords(sched domain.Schedule) []domain.GameRecord {
	out := make([]domain.GameRecord, 0, len(sched.Events))
	for _, ev := range sched.Events {
		out = append(out, domain.GameRecord{
			GameID:      ev.GameID,
			Date:        domain.StringPtr(ev.Date),
			StartTime:   domain.TimePtr(ev.Start),
			Status:      domain.StringPtr(string(ev.Status)),
			Competition: domain.StringPtr(string(ev.Competition)),
			Home:        domain.StringPtr(ev.Home),
			Away:        domain.StringPtr(ev.Away),
			Venue:       domain.StringPtr(ev.Venue),
			Source:      domain.StringPtr(ev.Source),
			UpdatedAt:   sched.FetchedAt,
		})
	}
	return out
}
