// Package reconcile cross-checks two independently ingested datasets for
// the same game and recommends which to trust.
package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"time"

	ierrors "github.com/preston-bernstein/game-ingest-service/internal/errors"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
)

// Rules are the reconciliation thresholds.
type Rules struct {
	Tolerance     int
	MajorDelta    int
	CriticalRatio float64
	// Structural metrics are at least major whenever they differ beyond tolerance.
	Structural []string
}

// DefaultRules treats a changed participant count as structural.
func DefaultRules() Rules {
	return Rules{
		Tolerance:     0,
		MajorDelta:    5,
		CriticalRatio: 0.5,
		Structural:    []string{MetricDistinctParticipants},
	}
}

// Archive stores validation results for audit.
type Archive interface {
	WriteValidation(gameID string, result any) error
}

// Reconciler validates dataset pairs. ValidationConflict is never fatal: it is logged and resolved to a recommendation.
type Reconciler struct {
	rules    Rules
	logger   *slog.Logger
	recorder *metrics.Recorder
	archive  Archive
	now      func() time.Time
}

// New builds a Reconciler. archive may be nil.
func New(rules Rules, logger *slog.Logger, recorder *metrics.Recorder, archive Archive) *Reconciler {
	return &Reconciler{
		rules:    rules,
		logger:   logger,
		recorder: recorder,
		archive:  archive,
		now:      time.Now,
	}
}

// Validate compares primary against secondary.
func (r *Reconciler) Validate(ctx context.Context, gameID string, primary, secondary *Dataset) ValidationResult {
	result := ValidationResult{
		GameID:          gameID,
		PrimarySource:   primary.source("primary"),
		SecondarySource: secondary.source("secondary"),
		Inconsistencies: []Inconsistency{},
		MissingData:     []MissingData{},
		ValidatedAt:     r.now().UTC(),
	}

	var missingA, missingB []string
	for _, field := range metricNames(primary, secondary) {
		a, b := primary.value(field), secondary.value(field)
		switch {
		case a == nil && b == nil:
			missingA = append(missingA, field)
			missingB = append(missingB, field)
		case a == nil:
			missingA = append(missingA, field)
		case b == nil:
			missingB = append(missingB, field)
		default:
			if sev, ok := r.severity(field, *a, *b); ok {
				result.Inconsistencies = append(result.Inconsistencies, Inconsistency{
					Field:    field,
					ValueA:   *a,
					ValueB:   *b,
					Severity: sev,
				})
			}
		}
	}
	if len(missingA) > 0 {
		result.MissingData = append(result.MissingData, MissingData{Source: result.PrimarySource, Fields: missingA})
	}
	if len(missingB) > 0 {
		result.MissingData = append(result.MissingData, MissingData{Source: result.SecondarySource, Fields: missingB})
	}

	result.Recommendation = recommend(primary, secondary, result)

	r.recorder.RecordReconciliation(string(result.Recommendation), len(result.Inconsistencies))
	level := slog.LevelInfo
	args := []any{
		logging.FieldGameID, gameID,
		"recommendation", result.Recommendation,
		"inconsistencies", len(result.Inconsistencies),
	}
	if len(result.Inconsistencies) > 0 {
		level = slog.LevelWarn
		args = append(args, "err", ierrors.ValidationConflict(gameID, nil))
	}
	logging.Ctx(ctx, r.logger, level, "reconciliation", args...)

	if r.archive != nil {
		if err := r.archive.WriteValidation(gameID, result); err != nil {
			logging.Error(r.logger, "archive validation failed", err, logging.FieldGameID, gameID)
		}
	}
	return result
}

func (r *Reconciler) severity(field string, a, b int) (Severity, bool) {
	delta := a - b
	if delta < 0 {
		delta = -delta
	}
	if delta <= r.rules.Tolerance {
		return "", false
	}

	structural := false
	for _, name := range r.rules.Structural {
		if name == field {
			structural = true
			break
		}
	}
	largest := a
	if b > largest {
		largest = b
	}
	relative := 0.0
	if largest > 0 {
		relative = float64(delta) / float64(largest)
	}

	major := r.rules.MajorDelta > 0 && delta >= r.rules.MajorDelta
	if major && r.rules.CriticalRatio > 0 && relative >= r.rules.CriticalRatio {
		return SeverityCritical, true
	}
	if major || structural {
		return SeverityMajor, true
	}
	return SeverityMinor, true
}

func recommend(primary, secondary *Dataset, result ValidationResult) Recommendation {
	primaryEmpty, secondaryEmpty := primary.Empty(), secondary.Empty()
	switch {
	case primaryEmpty && secondaryEmpty:
		return ManualReview
	case primaryEmpty:
		return UseSecondary
	case secondaryEmpty:
		return UsePrimary
	case result.HasSeverity(SeverityCritical):
		return ManualReview
	case len(result.Inconsistencies) == 0:
		return UsePrimary
	default:
		return Combine
	}
}

// Resolve produces field-wise values under the recommendation. Combine keeps
// agreeing values and takes the larger count where sources disagree. Missing
// values fall back to the other side.
func Resolve(result ValidationResult, primary, secondary *Dataset) map[string]*int {
	out := make(map[string]*int)
	conflicts := make(map[string]Inconsistency, len(result.Inconsistencies))
	for _, inc := range result.Inconsistencies {
		conflicts[inc.Field] = inc
	}
	for _, field := range metricNames(primary, secondary) {
		a, b := primary.value(field), secondary.value(field)
		first, second := a, b
		if result.Recommendation == UseSecondary {
			first, second = b, a
		}
		chosen := first
		if chosen == nil {
			chosen = second
		}
		if inc, ok := conflicts[field]; ok && result.Recommendation == Combine {
			v := inc.ValueA
			if inc.ValueB > v {
				v = inc.ValueB
			}
			chosen = &v
		}
		out[field] = chosen
	}
	return out
}

func metricNames(a, b *Dataset) []string {
	set := make(map[string]struct{})
	for _, ds := range []*Dataset{a, b} {
		if ds == nil {
			continue
		}
		for name := range ds.Metrics {
			set[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
