package poller

import (
	"context"
	"errors"

	"github.com/preston-bernstein/game-ingest-service/internal/config"
	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	ierrors "github.com/preston-bernstein/game-ingest-service/internal/errors"
	"github.com/preston-bernstein/game-ingest-service/internal/providers"
	"github.com/preston-bernstein/game-ingest-service/internal/reconcile"
	"github.com/preston-bernstein/game-ingest-service/internal/schedule"
)

// RecordStore receives canonical sub-event and aggregate rows.
type RecordStore interface {
	UpsertSubEvents(ctx context.Context, records []domain.SubEventRecord) error
	UpsertAggregates(ctx context.Context, records []domain.AggregateRecord) error
}

type outcome struct {
	updated bool
	denied  bool
	newRows int
	err     error
}

// gameKinds are collected on every tick alongside a game's events, each
// into its own timeline.
var gameKinds = []string{config.KindLineup, config.KindBoxscore}

// process polls every events source for task. Primary timelines feed the
// canonical store; secondary ones do only when no primary answered. Every
// source is ingested into its own timeline.
func (p *Poller) process(ctx context.Context, task schedule.LiveTask) outcome {
	var (
		out       outcome
		errs      []error
		denied    int
		attempted int
		primaryOK bool
		fresh     bool
		sources   []providers.Adapter
	)
	vars := providers.Vars(task.Date, task.ID, task.Index)
	for _, a := range p.adapters {
		if _, ok := a.URL(config.KindEvents, vars); !ok {
			continue
		}
		sources = append(sources, a)
		attempted++
		batch, err := p.collector.Collect(ctx, a, config.KindEvents, vars)
		if err != nil {
			if ierrors.Is(err, ierrors.ErrPolicyDenied) {
				denied++
			}
			errs = append(errs, err)
			continue
		}
		if a.Primary() {
			primaryOK = true
		}
		if batch.NotModified {
			continue
		}
		res, err := p.registry.Engine(a.Name(), config.KindEvents).Ingest(ctx, batch.Rows, task.ID, task.Index, batch.Confidence)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res.NewRows > 0 {
			fresh = true
			out.updated = true
			out.newRows += res.NewRows
		}
	}

	if attempted > 0 && denied == attempted {
		out.denied = true
	}

	for _, a := range sources {
		if err := p.flushSubEvents(ctx, task, a, a.Primary() || !primaryOK); err != nil {
			errs = append(errs, err)
		}
	}
	if fresh {
		if err := p.reconcile(ctx, task.ID); err != nil {
			errs = append(errs, err)
		}
	}
	for _, kind := range gameKinds {
		n, err := p.collectKind(ctx, task, kind)
		if err != nil {
			errs = append(errs, err)
		}
		if n > 0 {
			out.updated = true
			out.newRows += n
		}
	}
	out.err = errors.Join(errs...)
	return out
}

// flushSubEvents upserts every timeline record past the stream's committed
// watermark and advances the watermark only after the store accepts the
// batch, so a failed write is retried whole on the next tick. Streams that
// do not feed the store are acknowledged without writing.
func (p *Poller) flushSubEvents(ctx context.Context, task schedule.LiveTask, a providers.Adapter, feeds bool) error {
	engine := p.registry.Engine(a.Name(), config.KindEvents)
	pending, err := engine.Pending(ctx, task.ID, task.Index)
	if err != nil || len(pending) == 0 {
		return err
	}
	if feeds && p.store != nil {
		records := make([]domain.SubEventRecord, 0, len(pending))
		for _, rec := range pending {
			records = append(records, subEventRecord(task, a, rec))
		}
		if err := p.store.UpsertSubEvents(ctx, records); err != nil {
			return err
		}
	}
	return engine.Commit(ctx, task.ID, task.Index, pending[len(pending)-1].Ordinal)
}

// collectKind ingests one per-game data kind (lineup, box score) from every
// source that serves it. These streams are keyed by game with index 0.
func (p *Poller) collectKind(ctx context.Context, task schedule.LiveTask, kind string) (int, error) {
	vars := providers.Vars(task.Date, task.ID, -1)
	var (
		added int
		errs  []error
	)
	for _, a := range p.adapters {
		if _, ok := a.URL(kind, vars); !ok {
			continue
		}
		batch, err := p.collector.Collect(ctx, a, kind, vars)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if batch.NotModified {
			continue
		}
		res, err := p.registry.Engine(a.Name(), kind).Ingest(ctx, batch.Rows, task.ID, 0, batch.Confidence)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		added += res.NewRows
	}
	return added, errors.Join(errs...)
}

// reconcile cross-checks the game's primary and secondary timelines once
// both have data, then upserts the resolved aggregate.
func (p *Poller) reconcile(ctx context.Context, gameID string) error {
	if p.reconciler == nil {
		return nil
	}
	primary, secondary := p.datasets(gameID)
	if primary == nil || secondary == nil {
		return nil
	}
	result := p.reconciler.Validate(ctx, gameID, primary, secondary)
	if p.store == nil {
		return nil
	}
	return p.store.UpsertAggregates(ctx, []domain.AggregateRecord{aggregateRecord(result, primary, secondary)})
}

// datasets summarizes the first primary and first secondary source that
// hold timeline rows for gameID.
func (p *Poller) datasets(gameID string) (primary, secondary *reconcile.Dataset) {
	for _, a := range p.adapters {
		if (a.Primary() && primary != nil) || (!a.Primary() && secondary != nil) {
			continue
		}
		rows := p.timelineRows(a.Name(), gameID)
		if len(rows) == 0 {
			continue
		}
		ds := reconcile.Summarize(a.Name(), rows, providers.FieldParticipant)
		if a.Primary() {
			primary = ds
		} else {
			secondary = ds
		}
	}
	return primary, secondary
}

func (p *Poller) timelineRows(source, gameID string) []domain.Row {
	engine := p.registry.Engine(source, config.KindEvents)
	indexes, err := engine.Indexes(gameID)
	if err != nil {
		return nil
	}
	var rows []domain.Row
	for _, idx := range indexes {
		records, err := engine.Timeline(gameID, idx)
		if err != nil {
			continue
		}
		for _, rec := range records {
			rows = append(rows, rec.Row())
		}
	}
	return rows
}
