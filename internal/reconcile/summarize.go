package reconcile

import (
	"strings"

	"github.com/preston-bernstein/game-ingest-service/internal/domain"
)

// Summarize reduces a source's rows for one game to comparable counts.
// distinct_participants is left unobserved when no row carries the field.
func Summarize(source string, rows []domain.Row, participantField string) *Dataset {
	total := len(rows)
	ds := &Dataset{
		Source:  source,
		Metrics: map[string]*int{MetricTotalSubEvents: &total},
	}
	if rows == nil {
		ds.Metrics[MetricTotalSubEvents] = nil
	}

	seen := make(map[string]struct{})
	observed := false
	for _, row := range rows {
		name := strings.ToLower(row.Field(participantField))
		if name == "" {
			continue
		}
		observed = true
		seen[name] = struct{}{}
	}
	if observed {
		distinct := len(seen)
		ds.Metrics[MetricDistinctParticipants] = &distinct
	} else {
		ds.Metrics[MetricDistinctParticipants] = nil
	}
	return ds
}
