package snapshots

import (
	"errors"

	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	"github.com/preston-bernstein/game-ingest-service/internal/jsonfile"
)

// FSStore loads documents from the filesystem.
type FSStore struct {
	basePath string
}

// NewFSStore constructs an FS-backed snapshot store rooted at basePath.
func NewFSStore(basePath string) *FSStore {
	return &FSStore{basePath: basePath}
}

// LoadSchedule reads the schedule for date.
func (s *FSStore) LoadSchedule(date string) (domain.Schedule, error) {
	var payload domain.Schedule
	if err := s.load(SchedulePath(s.base(), date), date, &payload); err != nil {
		return domain.Schedule{}, err
	}
	if payload.Date == "" {
		payload.Date = date
	}
	return payload, nil
}

// LoadPlan decodes the day plan for date into payload.
func (s *FSStore) LoadPlan(date string, payload any) error {
	return s.load(PlanPath(s.base(), date), date, payload)
}

// LoadValidation decodes a game's archived reconciliation into payload.
func (s *FSStore) LoadValidation(gameID string, payload any) error {
	return s.load(ValidationPath(s.base(), gameID), gameID, payload)
}

// Manifest reads the current manifest.
func (s *FSStore) Manifest() (Manifest, error) {
	var m Manifest
	err := s.load(manifestPath(s.base()), "manifest", &m)
	return m, err
}

func (s *FSStore) base() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

func (s *FSStore) load(path, key string, payload any) error {
	if s == nil {
		return errors.New("snapshot store not configured")
	}
	if key == "" {
		return errors.New("snapshot key required")
	}
	return jsonfile.Read(path, payload)
}
