package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/coords"
	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	ierrors "github.com/preston-bernstein/game-ingest-service/internal/errors"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
)

// Batch is what one collection produced. NotModified batches carry no
// rows; the previous content is still current.
type Batch struct {
	Source      string
	Kind        string
	URL         string
	Primary     bool
	Confidence  domain.Confidence
	NotModified bool
	Rows        []domain.Row
	Skipped     int
	FetchedAt   time.Time
}

// Pipeline runs fetch, parse, coordinate normalization and confidence
// tagging for any adapter.
type Pipeline struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time
}

// NewPipeline wires a pipeline to a fetcher.
func NewPipeline(f Fetcher, logger *slog.Logger) *Pipeline {
	return &Pipeline{fetcher: f, logger: logger, now: time.Now}
}

// Collect fetches the kind page of adapter a and returns its rows.
// Fetch errors pass through unchanged; a page that cannot be parsed is a
// ParseFailure. Rows whose coordinates cannot be normalized are skipped.
func (p *Pipeline) Collect(ctx context.Context, a Adapter, kind string, vars map[string]string) (Batch, error) {
	if p == nil || p.fetcher == nil {
		return Batch{}, ierrors.New("pipeline not configured")
	}
	url, ok := a.URL(kind, vars)
	if !ok {
		return Batch{}, fmt.Errorf("source %s does not serve %s", a.Name(), kind)
	}
	batch := Batch{
		Source:     a.Name(),
		Kind:       kind,
		URL:        url,
		Primary:    a.Primary(),
		Confidence: a.Confidence(),
		FetchedAt:  p.now().UTC(),
	}

	resp, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return batch, err
	}
	if resp.FromCache {
		batch.NotModified = true
		logWithSource(ctx, p.logger, slog.LevelDebug, a.Name(), "page not modified", logging.FieldURL, url)
		return batch, nil
	}

	rows, err := a.Parse(kind, resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		if !ierrors.Is(err, ierrors.ErrParseFailure) {
			err = ierrors.ParseFailure(url, err)
		}
		logWithSource(ctx, p.logger, slog.LevelWarn, a.Name(), "page parse failed", logging.FieldURL, url, "err", err)
		return batch, err
	}

	fields, box, spatial := a.Coordinates(kind)
	out := make([]domain.Row, 0, len(rows))
	for i, row := range rows {
		if spatial {
			normalized, _, err := coords.Apply(row, fields, box, batch.Confidence)
			if err != nil {
				batch.Skipped++
				logWithSource(ctx, p.logger, slog.LevelWarn, a.Name(), "row skipped",
					logging.FieldURL, url,
					logging.FieldIndex, i,
					"err", ierrors.ParseFailure("coordinates", err),
				)
				continue
			}
			row = normalized
		}
		out = append(out, row)
	}
	batch.Rows = out

	logWithSource(ctx, p.logger, slog.LevelInfo, a.Name(), "page collected",
		logging.FieldURL, url,
		logging.FieldCount, len(out),
	)
	return batch, nil
}
