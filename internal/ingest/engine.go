// Package ingest is the differential ingestion engine: rows are hashed,
// unseen rows are appended to a per-stream JSONL timeline, and the whole
// batch becomes the stream's latest snapshot.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	"github.com/preston-bernstein/game-ingest-service/internal/jsonfile"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
)

const (
	timelineFile  = "timeline.jsonl"
	latestFile    = "latest.json"
	committedFile = "committed.json"
)

type streamKey struct {
	gameID string
	index  int
}

type stream struct {
	mu        sync.Mutex
	loaded    bool
	seen      map[string]struct{}
	timeline  int
	committed int
}

type watermark struct {
	Ordinal int `json:"ordinal"`
}

// Engine ingests rows for one source. Stream state is rebuilt from the
// timeline on first use, so the engine is restart-safe.
type Engine struct {
	baseDir  string
	source   string
	logger   *slog.Logger
	recorder *metrics.Recorder
	now      func() time.Time

	mu      sync.Mutex
	streams map[streamKey]*stream
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the fallback logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = rec }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine stores streams under baseDir/{gameId}/{index}.
func NewEngine(baseDir, source string, opts ...Option) *Engine {
	e := &Engine{
		baseDir: baseDir,
		source:  source,
		now:     time.Now,
		streams: make(map[streamKey]*stream),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Source returns the source name this engine ingests for.
func (e *Engine) Source() string {
	return e.source
}

// Ingest appends unseen rows to the (gameID, index) timeline and rewrites
// the latest snapshot with the full batch. Re-ingesting an identical batch
// leaves the timeline untouched.
func (e *Engine) Ingest(ctx context.Context, rows []domain.Row, gameID string, index int, confidence domain.Confidence) (Result, error) {
	if !domain.ValidID(gameID) {
		return Result{}, fmt.Errorf("ingest: invalid game id %q", gameID)
	}
	st, err := e.stream(ctx, gameID, index)
	if err != nil {
		return Result{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := e.now().UTC()
	snapshotRows := make([]SnapshotRow, 0, len(rows))
	var fresh []TimelineRecord
	var added []SnapshotRow
	for _, row := range rows {
		hash := RowHash(row.HashInput())
		sr := SnapshotRow{Row: row, RowHash: hash}
		snapshotRows = append(snapshotRows, sr)
		if _, ok := st.seen[hash]; ok {
			continue
		}
		st.seen[hash] = struct{}{}
		added = append(added, sr)
		fresh = append(fresh, TimelineRecord{
			Cells:      row.Cells,
			Fields:     row.Fields,
			RowHash:    hash,
			GameID:     gameID,
			Index:      index,
			Confidence: confidence,
			Source:     e.source,
			IngestedAt: now,
		})
	}

	if len(fresh) > 0 {
		if err := e.appendTimeline(gameID, index, fresh); err != nil {
			for _, rec := range fresh {
				delete(st.seen, rec.RowHash)
			}
			return Result{}, err
		}
		st.timeline += len(fresh)
	}

	snapshot := LatestSnapshot{
		GameID:     gameID,
		Index:      index,
		Source:     e.source,
		Confidence: confidence,
		UpdatedAt:  now,
		Rows:       snapshotRows,
	}
	if _, err := jsonfile.Write(e.latestPath(gameID, index), snapshot); err != nil {
		return Result{}, fmt.Errorf("write latest snapshot: %w", err)
	}

	result := Result{
		NewRows:      len(fresh),
		TotalRows:    len(rows),
		TimelineRows: st.timeline,
		Added:        added,
	}
	e.recorder.RecordIngest(e.source, result.NewRows, result.TotalRows)
	logging.Ctx(ctx, e.logger, slog.LevelInfo, "ingestion cycle",
		logging.FieldSource, e.source,
		logging.FieldGameID, gameID,
		logging.FieldIndex, index,
		logging.FieldNewRows, result.NewRows,
		logging.FieldCount, result.TotalRows,
	)
	return result, nil
}

// Pending returns the timeline records appended after the stream's
// committed watermark, oldest first.
func (e *Engine) Pending(ctx context.Context, gameID string, index int) ([]PendingRecord, error) {
	if !domain.ValidID(gameID) {
		return nil, fmt.Errorf("ingest: invalid game id %q", gameID)
	}
	st, err := e.stream(ctx, gameID, index)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.committed >= st.timeline {
		return nil, nil
	}
	var out []PendingRecord
	ordinal := 0
	err = e.replay(ctx, gameID, index, func(rec TimelineRecord) {
		ordinal++
		if ordinal > st.committed {
			out = append(out, PendingRecord{TimelineRecord: rec, Ordinal: ordinal})
		}
	})
	return out, err
}

// Commit advances the committed watermark to ordinal once the records up
// to it are durably stored downstream. It never moves backwards.
func (e *Engine) Commit(ctx context.Context, gameID string, index, ordinal int) error {
	if !domain.ValidID(gameID) {
		return fmt.Errorf("ingest: invalid game id %q", gameID)
	}
	st, err := e.stream(ctx, gameID, index)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if ordinal <= st.committed {
		return nil
	}
	if ordinal > st.timeline {
		ordinal = st.timeline
	}
	if _, err := jsonfile.Write(e.committedPath(gameID, index), watermark{Ordinal: ordinal}); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	st.committed = ordinal
	return nil
}

// Latest reads the most recent snapshot for a stream.
func (e *Engine) Latest(gameID string, index int) (LatestSnapshot, bool, error) {
	path := e.latestPath(gameID, index)
	if !jsonfile.Exists(path) {
		return LatestSnapshot{}, false, nil
	}
	var snap LatestSnapshot
	if err := jsonfile.Read(path, &snap); err != nil {
		return LatestSnapshot{}, false, err
	}
	return snap, true, nil
}

// Timeline reads every record of a stream in append order. Malformed lines are skipped.
func (e *Engine) Timeline(gameID string, index int) ([]TimelineRecord, error) {
	var out []TimelineRecord
	err := e.replay(context.Background(), gameID, index, func(rec TimelineRecord) {
		out = append(out, rec)
	})
	return out, err
}

// Indexes lists the stream indexes recorded for a game, in ascending order.
func (e *Engine) Indexes(gameID string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(e.baseDir, gameID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if idx, err := strconv.Atoi(entry.Name()); err == nil {
			out = append(out, idx)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (e *Engine) stream(ctx context.Context, gameID string, index int) (*stream, error) {
	key := streamKey{gameID: gameID, index: index}
	e.mu.Lock()
	st, ok := e.streams[key]
	if !ok {
		st = &stream{seen: make(map[string]struct{})}
		e.streams[key] = st
	}
	e.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.loaded {
		return st, nil
	}
	err := e.replay(ctx, gameID, index, func(rec TimelineRecord) {
		st.seen[rec.RowHash] = struct{}{}
		st.timeline++
	})
	if err != nil {
		return nil, err
	}
	if path := e.committedPath(gameID, index); jsonfile.Exists(path) {
		var w watermark
		if err := jsonfile.Read(path, &w); err != nil {
			return nil, fmt.Errorf("read watermark: %w", err)
		}
		st.committed = w.Ordinal
	}
	st.loaded = true
	return st, nil
}

// replay walks the timeline and recomputes each hash from the stored
// cells, so records written before a normalization change still dedupe.
func (e *Engine) replay(ctx context.Context, gameID string, index int, visit func(TimelineRecord)) error {
	f, err := os.Open(e.timelinePath(gameID, index))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open timeline: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec TimelineRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			logging.Ctx(ctx, e.logger, slog.LevelWarn, "skipping malformed timeline line",
				logging.FieldGameID, gameID,
				logging.FieldIndex, index,
				"line", line,
				"err", err,
			)
			continue
		}
		rec.RowHash = RowHash(rec.Row().HashInput())
		visit(rec)
	}
	return scanner.Err()
}

func (e *Engine) appendTimeline(gameID string, index int, records []TimelineRecord) error {
	path := e.timelinePath(gameID, index)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create stream dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open timeline: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode timeline record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("append timeline: %w", err)
	}
	return f.Sync()
}

func (e *Engine) streamDir(gameID string, index int) string {
	return filepath.Join(e.baseDir, gameID, strconv.Itoa(index))
}

func (e *Engine) timelinePath(gameID string, index int) string {
	return filepath.Join(e.streamDir(gameID, index), timelineFile)
}

func (e *Engine) latestPath(gameID string, index int) string {
	return filepath.Join(e.streamDir(gameID, index), latestFile)
}

func (e *Engine) committedPath(gameID string, index int) string {
	return filepath.Join(e.streamDir(gameID, index), committedFile)
}
