// Package games serves canonical game records to the ops surface.
package games

import (
	"context"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/domain"
)

// Store defines the read side of the canonical record store.
type Store interface {
	GamesOn(ctx context.Context, date string) ([]domain.GameRecord, error)
	GetGame(ctx context.Context, gameID string) (domain.GameRecord, bool, error)
	SubEvents(ctx context.Context, gameID string) ([]domain.SubEventRecord, error)
	GetAggregate(ctx context.Context, gameID string) (domain.AggregateRecord, bool, error)
}

// Game is the JSON view of a GameRecord. Unobserved fields are omitted.
type Game struct {
	ID          string     `json:"id"`
	Date        *string    `json:"date,omitempty"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Competition *string    `json:"competition,omitempty"`
	Home        *string    `json:"home,omitempty"`
	Away        *string    `json:"away,omitempty"`
	Venue       *string    `json:"venue,omitempty"`
	Source      *string    `json:"source,omitempty"`
	Confidence  *string    `json:"confidence,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// SubEvent is the JSON view of a SubEventRecord; the raw payload is not exposed.
type SubEvent struct {
	Index       int      `json:"index"`
	Sequence    int      `json:"sequence"`
	Participant *string  `json:"participant,omitempty"`
	Description *string  `json:"description,omitempty"`
	PlateX      *float64 `json:"plateX,omitempty"`
	PlateZ      *float64 `json:"plateZ,omitempty"`
	Zone        *string  `json:"zone,omitempty"`
	Source      *string  `json:"source,omitempty"`
}

// Aggregate is the JSON view of an AggregateRecord.
type Aggregate struct {
	TotalSubEvents       *int64    `json:"totalSubEvents,omitempty"`
	DistinctParticipants *int64    `json:"distinctParticipants,omitempty"`
	PrimarySource        *string   `json:"primarySource,omitempty"`
	Recommendation       *string   `json:"recommendation,omitempty"`
	Inconsistencies      *int64    `json:"inconsistencies,omitempty"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Detail is one game with its totals and sub-events.
type Detail struct {
	Game      Game       `json:"game"`
	Aggregate *Aggregate `json:"aggregate,omitempty"`
	SubEvents []SubEvent `json:"subEvents"`
}

// Service coordinates game reads using a Store.
type Service struct {
	store Store
}

// NewService constructs a Service with the provided Store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// GamesOn returns the games scheduled on date, ordered by start time.
func (s *Service) GamesOn(ctx context.Context, date string) ([]Game, error) {
	records, err := s.store.GamesOn(ctx, date)
	if err != nil {
		return nil, err
	}
	out := make([]Game, 0, len(records))
	for _, r := range records {
		out = append(out, gameView(r))
	}
	return out, nil
}

// Detail returns a single game with its aggregate and sub-events.
func (s *Service) Detail(ctx context.Context, gameID string) (Detail, bool, error) {
	rec, ok, err := s.store.GetGame(ctx, gameID)
	if err != nil || !ok {
		return Detail{}, false, err
	}
	detail := Detail{Game: gameView(rec), SubEvents: []SubEvent{}}

	agg, ok, err := s.store.GetAggregate(ctx, gameID)
	if err != nil {
		return Detail{}, false, err
	}
	if ok {
		detail.Aggregate = &Aggregate{
			TotalSubEvents:       agg.TotalSubEvents,
			DistinctParticipants: agg.DistinctParticipants,
			PrimarySource:        agg.PrimarySource,
			Recommendation:       agg.Recommendation,
			Inconsistencies:      agg.Inconsistencies,
			UpdatedAt:            agg.UpdatedAt,
		}
	}

	subs, err := s.store.SubEvents(ctx, gameID)
	if err != nil {
		return Detail{}, false, err
	}
	for _, sub := range subs {
		detail.SubEvents = append(detail.SubEvents, SubEvent{
			Index:       sub.Index,
			Sequence:    sub.Sequence,
			Participant: sub.Participant,
			Description: sub.Description,
			PlateX:      sub.PlateX,
			PlateZ:      sub.PlateZ,
			Zone:        sub.Zone,
			Source:      sub.Source,
		})
	}
	return detail, true, nil
}

func gameView(r domain.GameRecord) Game {
	return Game{
		ID:          r.GameID,
		Date:        r.Date,
		StartTime:   r.StartTime,
		Status:      r.Status,
		Competition: r.Competition,
		Home:        r.Home,
		Away:        r.Away,
		Venue:       r.Venue,
		Source:      r.Source,
		Confidence:  r.Confidence,
		UpdatedAt:   r.UpdatedAt,
	}
}
