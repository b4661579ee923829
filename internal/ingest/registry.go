package ingest

import (
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
)

// Registry hands out one Engine per (source, data kind), each rooted at
// baseDir/{kind}/{source}.
type Registry struct {
	baseDir  string
	logger   *slog.Logger
	recorder *metrics.Recorder
	now      func() time.Time

	mu      sync.Mutex
	engines map[engineKey]*Engine
}

type engineKey struct {
	source string
	kind   string
}

// NewRegistry creates an empty registry.
func NewRegistry(baseDir string, logger *slog.Logger, recorder *metrics.Recorder, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		baseDir:  baseDir,
		logger:   logger,
		recorder: recorder,
		now:      now,
		engines:  make(map[engineKey]*Engine),
	}
}

// Engine returns the engine for source and kind, creating it on first use.
func (r *Registry) Engine(source, kind string) *Engine {
	key := engineKey{source: source, kind: kind}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[key]; ok {
		return e
	}
	e := NewEngine(filepath.Join(r.baseDir, kind, source), source,
		WithLogger(r.logger),
		WithRecorder(r.recorder),
		WithClock(r.now),
	)
	r.engines[key] = e
	return e
}

// Sources lists the distinct sources with an engine, sorted.
func (r *Registry) Sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(r.engines))
	out := make([]string, 0, len(r.engines))
	for key := range r.engines {
		if _, ok := seen[key.source]; ok {
			continue
		}
		seen[key.source] = struct{}{}
		out = append(out, key.source)
	}
	sort.Strings(out)
	return out
}
