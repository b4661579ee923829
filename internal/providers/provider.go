// Package providers holds the per-source adapters and the generic
// fetch, parse, normalize pipeline they plug into.
package providers

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/preston-bernstein/game-ingest-service/internal/config"
	"github.com/preston-bernstein/game-ingest-service/internal/coords"
	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	"github.com/preston-bernstein/game-ingest-service/internal/fetcher"
)

// Fetcher is the polite HTTP client the pipeline collects through.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// Adapter describes one upstream source: where its pages live, how its
// tables turn into rows and what confidence its data starts with.
type Adapter interface {
	Name() string
	Primary() bool
	Confidence() domain.Confidence
	URL(kind string, vars map[string]string) (string, bool)
	Parse(kind string, body []byte, contentType string) ([]domain.Row, error)
	Coordinates(kind string) (coords.Fields, coords.Box, bool)
}

// Field names the schedule and event tables map columns onto.
const (
	FieldGameID      = "gameId"
	FieldStart       = "start"
	FieldStatus      = "status"
	FieldCompetition = "competition"
	FieldHome        = "home"
	FieldAway        = "away"
	FieldVenue       = "venue"
	FieldSequence    = "sequence"
	FieldParticipant = "participant"
	FieldDescription = "description"
)

const indexMarker = "\x00"

// GamePrefix returns the URL prefix shared by every events page of a game,
// i.e. the events template expanded up to {index}.
func GamePrefix(a Adapter, date, gameID string) (string, bool) {
	vars := Vars(date, gameID, -1)
	vars["index"] = indexMarker
	u, ok := a.URL(config.KindEvents, vars)
	if !ok {
		return "", false
	}
	prefix, _, _ := strings.Cut(u, url.PathEscape(indexMarker))
	return prefix, prefix != ""
}

// Vars builds URL template variables.
func Vars(date, gameID string, index int) map[string]string {
	vars := map[string]string{}
	if date != "" {
		vars["date"] = date
	}
	if gameID != "" {
		vars["gameId"] = gameID
	}
	if index >= 0 {
		vars["index"] = strconv.Itoa(index)
	}
	return vars
}
