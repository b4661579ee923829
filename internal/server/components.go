package server

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/preston-bernstein/game-ingest-service/internal/config"
	"github.com/preston-bernstein/game-ingest-service/internal/fetcher"
	"github.com/preston-bernstein/game-ingest-service/internal/ingest"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
	"github.com/preston-bernstein/game-ingest-service/internal/poller"
	"github.com/preston-bernstein/game-ingest-service/internal/providers"
	"github.com/preston-bernstein/game-ingest-service/internal/reconcile"
	"github.com/preston-bernstein/game-ingest-service/internal/schedule"
	"github.com/preston-bernstein/game-ingest-service/internal/snapshots"
	"github.com/preston-bernstein/game-ingest-service/internal/store"
	"github.com/preston-bernstein/game-ingest-service/internal/timeutil"
)

// Layout under the data directory.
const (
	fetchDir     = "fetch"
	timelinesDir = "timelines"
	snapshotsDir = "snapshots"
)

// components is the wired ingestion pipeline.
type components struct {
	store    *store.Store
	fetcher  *fetcher.Fetcher
	adapters []providers.Adapter
	planner  *schedule.Planner
	queue    *schedule.Queue
	syncer   *schedule.Syncer
	watcher  *schedule.Watcher
	poller   *poller.Poller
}

func buildComponents(ctx context.Context, cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*components, error) {
	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	adapters := providers.NewTableAdapters(sources)

	f, err := buildFetcher(cfg, logger, recorder)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, store.WithLogger(logger), store.WithRecorder(recorder))
	if err != nil {
		return nil, err
	}

	pipeline := providers.NewPipeline(f, logger)
	writer := snapshots.NewWriter(filepath.Join(cfg.DataDir, snapshotsDir), cfg.Scheduler.RetentionDays)
	planner := schedule.NewPlanner(timeutil.ResolveLocation(cfg.Scheduler.Timezone), cfg.Scheduler.ExpectedSlate, cfg.Scheduler.AvgGameDuration)
	queue := schedule.NewQueue(schedule.QueueConfig{
		UpdateInterval:    cfg.Scheduler.TickInterval,
		MaxNoUpdateCycles: cfg.Scheduler.MaxNoUpdateCycles,
		MaxSilence:        cfg.Scheduler.MaxSilence,
	}, logger, recorder)
	queue.OnRemove(cachePruner(f.Cache(), adapters, logger))
	syncer := schedule.NewSyncer(adapters, pipeline, st, writer, planner, queue, schedule.SyncConfigFrom(cfg.Scheduler), logger)

	watcher, err := schedule.NewWatcher(snapshots.ScheduleDir(writer.BasePath()), func(date string) error {
		_, err := syncer.Replan(date)
		return err
	}, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	plr := poller.New(poller.Deps{
		Queue:      queue,
		Collector:  pipeline,
		Adapters:   adapters,
		Registry:   ingest.NewRegistry(filepath.Join(cfg.DataDir, timelinesDir), logger, recorder, nil),
		Store:      st,
		Reconciler: reconcile.New(reconcileRules(cfg.Reconcile), logger, recorder, writer),
		Logger:     logger,
		Metrics:    recorder,
	}, cfg.Scheduler.TickInterval)

	return &components{
		store:    st,
		fetcher:  f,
		adapters: adapters,
		planner:  planner,
		queue:    queue,
		syncer:   syncer,
		watcher:  watcher,
		poller:   plr,
	}, nil
}

func buildFetcher(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*fetcher.Fetcher, error) {
	dir := filepath.Join(cfg.DataDir, fetchDir)
	return fetcher.New(fetcher.Config{
		UserAgent:        fetcher.UserAgent(cfg.ContactID),
		Normal:           fetcher.Profile(cfg.Fetcher.Normal),
		Conservative:     fetcher.Profile(cfg.Fetcher.Conservative),
		FailureThreshold: cfg.Fetcher.FailureThreshold,
		Retry:            fetcher.DefaultRetryPolicy(cfg.Fetcher.MaxAttempts),
		AttemptTimeout:   cfg.Fetcher.AttemptTimeout,
		RetryAfterCap:    cfg.Fetcher.RetryAfterCap,
		CachePath:        filepath.Join(dir, "cache.json"),
		StatePath:        filepath.Join(dir, "state.json"),
		Logger:           logger,
		Recorder:         recorder,
	})
}

// reconcileRules overlays configured thresholds on the defaults.
func reconcileRules(cfg config.ReconcileConfig) reconcile.Rules {
	rules := reconcile.DefaultRules()
	rules.Tolerance = cfg.Tolerance
	if cfg.MajorDelta > 0 {
		rules.MajorDelta = cfg.MajorDelta
	}
	if cfg.CriticalRatio > 0 {
		rules.CriticalRatio = cfg.CriticalRatio
	}
	return rules
}

// cachePruner drops fetch-cache validators for the events pages of games
// that have finished; nothing will request those URLs again.
func cachePruner(cache *fetcher.Cache, adapters []providers.Adapter, logger *slog.Logger) func(schedule.LiveTask, string) {
	return func(task schedule.LiveTask, reason string) {
		if cache == nil || reason != schedule.RemovedFinished {
			return
		}
		for _, a := range adapters {
			prefix, ok := providers.GamePrefix(a, task.Date, task.ID)
			if !ok {
				continue
			}
			n, err := cache.PruneByPrefix(prefix)
			if err != nil {
				logging.Warn(logger, "cache prune failed", logging.FieldGameID, task.ID, "err", err)
				continue
			}
			if n > 0 {
				logging.Debug(logger, "cache pruned", logging.FieldGameID, task.ID, logging.FieldSource, a.Name(), logging.FieldCount, n)
			}
		}
	}
}
