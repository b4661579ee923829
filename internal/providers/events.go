package providers

import (
	"strings"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/domain"
)

var startLayouts = []string{"15:04", "3:04 PM", "3:04PM", "3:04 pm", "3:04pm"}

// EventsFromRows maps schedule rows onto scheduled events for date, in
// loc. Rows without a usable game id are dropped; unparseable start times
// fall back to midnight of date.
func EventsFromRows(rows []domain.Row, source, date string, loc *time.Location) []domain.ScheduledEvent {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil
	}
	events := make([]domain.ScheduledEvent, 0, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(row.Field(FieldGameID))
		if !domain.ValidID(id) {
			continue
		}
		events = append(events, domain.ScheduledEvent{
			GameID:      id,
			Date:        date,
			Start:       parseStart(row.Field(FieldStart), day, loc),
			Status:      domain.ParseStatus(row.Field(FieldStatus)),
			Competition: domain.ParseCompetition(row.Field(FieldCompetition)),
			Home:        row.Field(FieldHome),
			Away:        row.Field(FieldAway),
			Venue:       row.Field(FieldVenue),
			Source:      source,
		})
	}
	return events
}

func parseStart(raw string, day time.Time, loc *time.Location) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return day
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc)
	}
	for _, layout := range startLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	}
	return day
}
