package snapshots

import (
	"path/filepath"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/jsonfile"
)

// Manifest tracks snapshot metadata.
type Manifest struct {
	Version     int       `json:"version"`
	GeneratedAt time.Time `json:"generatedAt"`
	Retention   Retention `json:"retention"`
	Plans       DatedMeta `json:"plans"`
	Schedules   DatedMeta `json:"schedules"`
	Validations CountMeta `json:"validations"`
}

type Retention struct {
	Days int `json:"days"`
}

type DatedMeta struct {
	Dates         []string  `json:"dates"`
	LastRefreshed time.Time `json:"lastRefreshed"`
}

type CountMeta struct {
	Count         int       `json:"count"`
	LastRefreshed time.Time `json:"lastRefreshed"`
}

func defaultManifest(retentionDays int, now time.Time) Manifest {
	return Manifest{
		Version:     1,
		GeneratedAt: now,
		Retention:   Retention{Days: retentionDays},
		Plans:       DatedMeta{Dates: []string{}},
		Schedules:   DatedMeta{Dates: []string{}},
	}
}

func manifestPath(basePath string) string {
	return filepath.Join(basePath, "manifest.json")
}

func readManifest(path string, retentionDays int, now time.Time) (Manifest, error) {
	var m Manifest
	if err := jsonfile.Read(path, &m); err != nil {
		return defaultManifest(retentionDays, now), err
	}
	return m, nil
}

func writeManifest(basePath string, m Manifest, now time.Time) error {
	m.GeneratedAt = now
	_, err := jsonfile.Write(manifestPath(basePath), m)
	return err
}
