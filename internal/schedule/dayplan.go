// Package schedule decides when to fetch: a per-date DayPlan shaped by
// the day's games, a priority queue of live games and the schedule sync
// that feeds both.
package schedule

import (
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	"github.com/preston-bernstein/game-ingest-service/internal/timeutil"
)

const (
	idleIntervalMinutes     = 120
	preIntervalMinutes      = 60
	earlyPreIntervalMinutes = 30
	postIntervalMinutes     = 45
	liveFloorMinutes        = 10

	earlyStartHour = 13

	defaultAvgGameDuration = 3 * time.Hour
	defaultExpectedSlate   = 6
)

// lateCeiling is the latest the live window may run, as an offset from local midnight.
const lateCeiling = 23*time.Hour + 30*time.Minute

// Window is a span of the day polled at a fixed interval.
type Window struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	IntervalMinutes int       `json:"intervalMinutes"`
}

// Contains reports whether t falls in [Start, End).
func (w *Window) Contains(t time.Time) bool {
	if w == nil {
		return false
	}
	return !t.Before(w.Start) && t.Before(w.End)
}

// Interval is the window cadence as a duration.
func (w *Window) Interval() time.Duration {
	if w == nil {
		return 0
	}
	return time.Duration(w.IntervalMinutes) * time.Minute
}

// DayPlan is the polling shape of one calendar date.
type DayPlan struct {
	Date        string            `json:"date"`
	HasEvents   bool              `json:"hasEvents"`
	EventCount  int               `json:"eventCount"`
	Confidence  domain.Confidence `json:"confidence"`
	Pre         *Window           `json:"pre"`
	Live        *Window           `json:"live,omitempty"`
	Post        *Window           `json:"post,omitempty"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// Phase names the window containing t: "pre", "live", "post" or "" outside the day.
func (p DayPlan) Phase(t time.Time) string {
	switch {
	case p.Live.Contains(t):
		return "live"
	case p.Pre.Contains(t):
		return "pre"
	case p.Post.Contains(t):
		return "post"
	default:
		return ""
	}
}

// IntervalAt returns the polling interval in force at t. Outside every
// window the idle cadence applies.
func (p DayPlan) IntervalAt(t time.Time) time.Duration {
	for _, w := range []*Window{p.Live, p.Pre, p.Post} {
		if w.Contains(t) {
			return w.Interval()
		}
	}
	return idleIntervalMinutes * time.Minute
}

// Planner builds DayPlans in a fixed calendar location.
type Planner struct {
	loc             *time.Location
	expectedSlate   int
	avgGameDuration time.Duration
	now             func() time.Time
}

// NewPlanner constructs a planner; a nil location means UTC.
func NewPlanner(loc *time.Location, expectedSlate int, avgGameDuration time.Duration) *Planner {
	if loc == nil {
		loc = time.UTC
	}
	if expectedSlate <= 0 {
		expectedSlate = defaultExpectedSlate
	}
	if avgGameDuration <= 0 {
		avgGameDuration = defaultAvgGameDuration
	}
	return &Planner{
		loc:             loc,
		expectedSlate:   expectedSlate,
		avgGameDuration: avgGameDuration,
		now:             time.Now,
	}
}

// Location is the calendar the planner interprets dates in.
func (p *Planner) Location() *time.Location {
	return p.loc
}

// PlanFor derives the plan for date from its scheduled events.
func (p *Planner) PlanFor(date string, events []domain.ScheduledEvent) (DayPlan, error) {
	dayStart, err := timeutil.ParseDateIn(date, p.loc)
	if err != nil {
		return DayPlan{}, err
	}
	dayEnd := dayStart.AddDate(0, 0, 1)
	now := p.now()

	plan := DayPlan{
		Date:        date,
		EventCount:  len(events),
		GeneratedAt: now.UTC(),
	}
	if len(events) == 0 {
		plan.Pre = &Window{Start: dayStart, End: dayEnd, IntervalMinutes: idleIntervalMinutes}
		plan.Confidence = domain.ConfidenceMedium
		if timeutil.SameDay(now.In(p.loc), dayStart) {
			plan.Confidence = domain.ConfidenceLow
		}
		return plan, nil
	}
	plan.HasEvents = true

	earliest, latest := startBounds(events, dayStart, dayEnd)

	preInterval := preIntervalMinutes
	if earliest.Sub(dayStart) < earlyStartHour*time.Hour {
		preInterval = earlyPreIntervalMinutes
	}
	plan.Pre = &Window{Start: dayStart, End: earliest, IntervalMinutes: preInterval}

	liveEnd := latest.Add(p.avgGameDuration)
	if ceiling := dayStart.Add(lateCeiling); liveEnd.After(ceiling) {
		liveEnd = ceiling
	}
	if !liveEnd.After(earliest) {
		liveEnd = earliest.Add(p.avgGameDuration)
		if liveEnd.After(dayEnd) {
			liveEnd = dayEnd
		}
	}
	plan.Live = &Window{Start: earliest, End: liveEnd, IntervalMinutes: liveInterval(len(events))}
	plan.Post = &Window{Start: liveEnd, End: dayEnd, IntervalMinutes: postIntervalMinutes}

	plan.Confidence = p.confidence(len(events))
	return plan, nil
}

func (p *Planner) confidence(count int) domain.Confidence {
	switch {
	case count >= p.expectedSlate:
		return domain.ConfidenceHigh
	case count >= (p.expectedSlate+1)/2:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// liveInterval tightens the live cadence as the slate grows, never below the floor.
func liveInterval(count int) int {
	switch {
	case count <= 1:
		return 30
	case count <= 3:
		return 20
	case count <= 5:
		return 15
	default:
		return liveFloorMinutes
	}
}

// startBounds returns the earliest and latest start times clamped into the day.
func startBounds(events []domain.ScheduledEvent, dayStart, dayEnd time.Time) (time.Time, time.Time) {
	var earliest, latest time.Time
	for i, ev := range events {
		start := ev.Start
		if start.IsZero() || start.Before(dayStart) {
			start = dayStart
		}
		if !start.Before(dayEnd) {
			start = dayEnd.Add(-time.Minute)
		}
		if i == 0 || start.Before(earliest) {
			earliest = start
		}
		if i == 0 || start.After(latest) {
			latest = start
		}
	}
	return earliest, latest
}
