package domain

import (
	"strings"
	"time"
)

// GameStatus mirrors the shared contract for game lifecycle states.
type GameStatus string

const (
	StatusScheduled  GameStatus = "SCHEDULED"
	StatusInProgress GameStatus = "IN_PROGRESS"
	StatusFinal      GameStatus = "FINAL"
	StatusPostponed  GameStatus = "POSTPONED"
	StatusCanceled   GameStatus = "CANCELED"
)

// Active reports whether a game is worth tracking live.
func (s GameStatus) Active() bool {
	return s == StatusScheduled || s == StatusInProgress
}

// ParseStatus maps loose upstream status text onto a GameStatus.
func ParseStatus(raw string) GameStatus {
	switch normalizeKey(raw) {
	case "final", "ended", "game set", "finished":
		return StatusFinal
	case "in progress", "live", "in_progress", "playing":
		return StatusInProgress
	case "postponed", "suspended":
		return StatusPostponed
	case "canceled", "cancelled":
		return StatusCanceled
	default:
		return StatusScheduled
	}
}

// Competition distinguishes the primary league from secondary (farm) leagues.
type Competition string

const (
	CompetitionPrimary   Competition = "primary"
	CompetitionSecondary Competition = "secondary"
)

// ParseCompetition defaults unknown values to secondary.
func ParseCompetition(raw string) Competition {
	if normalizeKey(raw) == string(CompetitionPrimary) {
		return CompetitionPrimary
	}
	return CompetitionSecondary
}

// ValidID reports whether id can name a game on disk and in URLs: non-empty,
// no path separators, no "..".
func ValidID(id string) bool {
	if id == "" || id == "." {
		return false
	}
	return !strings.ContainsAny(id, "/\\\x00") && !strings.Contains(id, "..")
}

// ScheduledEvent is one game found on a day's schedule.
type ScheduledEvent struct {
	GameID      string      `json:"gameId"`
	Date        string      `json:"date"`
	Start       time.Time   `json:"start"`
	Status      GameStatus  `json:"status"`
	Competition Competition `json:"competition"`
	Home        string      `json:"home,omitempty"`
	Away        string      `json:"away,omitempty"`
	Venue       string      `json:"venue,omitempty"`
	Source      string      `json:"source,omitempty"`
}

// Schedule is the schedule document for one date.
type Schedule struct {
	Date      string           `json:"date"`
	Source    string           `json:"source,omitempty"`
	FetchedAt time.Time        `json:"fetchedAt"`
	Events    []ScheduledEvent `json:"events"`
}

// NewSchedule builds a Schedule payload.
func NewSchedule(date, source string, fetchedAt time.Time, events []ScheduledEvent) Schedule {
	return Schedule{
		Date:      date,
		Source:    source,
		FetchedAt: fetchedAt,
		Events:    events,
	}
}
