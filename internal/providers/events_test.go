package providers

import (
	"testing"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/domain"
)

func TestEventsFromRows(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	rows := []domain.Row{
		{Fields: map[string]string{FieldGameID: "g1", FieldStart: "19:05", FieldStatus: "Live", FieldCompetition: "primary", FieldHome: "NYY", FieldAway: "BOS"}},
		{Fields: map[string]string{FieldStart: "13:10"}},
		{Fields: map[string]string{FieldGameID: "g2", FieldStart: "1:10 PM", FieldStatus: "Final"}},
		{Fields: map[string]string{FieldGameID: "g3", FieldStart: "2026-10-18T23:00:00Z"}},
		{Fields: map[string]string{FieldGameID: "g4", FieldStart: "TBD"}},
	}

	events := EventsFromRows(rows, "gameday", "2026-10-18", loc)
	if len(events) != 4 {
		t.Fatalf("expected row without id dropped, got %d events", len(events))
	}

	cases := []struct {
		idx    int
		id     string
		hour   int
		status domain.GameStatus
	}{
		{0, "g1", 19, domain.StatusInProgress},
		{1, "g2", 13, domain.StatusFinal},
		{2, "g3", 19, domain.StatusScheduled},
		{3, "g4", 0, domain.StatusScheduled},
	}
	for _, tc := range cases {
		ev := events[tc.idx]
		if ev.GameID != tc.id || ev.Start.Hour() != tc.hour || ev.Status != tc.status {
			t.Fatalf("event %d: got id=%s hour=%d status=%s", tc.idx, ev.GameID, ev.Start.Hour(), ev.Status)
		}
		if ev.Date != "2026-10-18" || ev.Source != "gameday" {
			t.Fatalf("event %d: unexpected date/source %s %s", tc.idx, ev.Date, ev.Source)
		}
	}
	if events[0].Competition != domain.CompetitionPrimary || events[1].Competition != domain.CompetitionSecondary {
		t.Fatalf("unexpected competitions %s %s", events[0].Competition, events[1].Competition)
	}
	if events[0].Home != "NYY" || events[0].Away != "BOS" {
		t.Fatalf("unexpected teams %+v", events[0])
	}
}

func TestEventsFromRowsDropsUnsafeGameIDs(t *testing.T) {
	rows := []domain.Row{
		{Fields: map[string]string{FieldGameID: "../../escaped"}},
		{Fields: map[string]string{FieldGameID: "a/b"}},
		{Fields: map[string]string{FieldGameID: " g7 "}},
	}
	events := EventsFromRows(rows, "gameday", "2026-10-18", time.UTC)
	if len(events) != 1 || events[0].GameID != "g7" {
		t.Fatalf("expected only the safe id kept, got %+v", events)
	}
}

func TestEventsFromRowsBadDate(t *testing.T) {
	rows := []domain.Row{{Fields: map[string]string{FieldGameID: "g1"}}}
	if got := EventsFromRows(rows, "s", "not-a-date", nil); got != nil {
		t.Fatalf("expected nil for bad date, got %+v", got)
	}
}

func TestVars(t *testing.T) {
	vars := Vars("2026-10-18", "", -1)
	if len(vars) != 1 || vars["date"] != "2026-10-18" {
		t.Fatalf("unexpected vars %+v", vars)
	}
}
