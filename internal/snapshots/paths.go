package snapshots

import (
	"fmt"
	"path/filepath"
)

type snapshotKind string

const (
	kindPlans       snapshotKind = "plans"
	kindSchedules   snapshotKind = "schedules"
	kindValidations snapshotKind = "validations"
)

// PlanPath builds the path to a day plan document.
func PlanPath(basePath, date string) string {
	return filepath.Join(basePath, string(kindPlans), fmt.Sprintf("%s.json", date))
}

// SchedulePath builds the path to a schedule document.
func SchedulePath(basePath, date string) string {
	return filepath.Join(basePath, string(kindSchedules), fmt.Sprintf("%s.json", date))
}

// ScheduleDir is the directory the schedule watcher observes.
func ScheduleDir(basePath string) string {
	return filepath.Join(basePath, string(kindSchedules))
}

// ValidationPath builds the path to a game's reconciliation archive.
func ValidationPath(basePath, gameID string) string {
	return filepath.Join(basePath, string(kindValidations), fmt.Sprintf("%s.json", gameID))
}

// DateFromPath extracts YYYY-MM-DD from a dated document path.
func DateFromPath(path string) string {
	name := filepath.Base(path)
	if filepath.Ext(name) != ".json" {
		return ""
	}
	return name[:len(name)-len(".json")]
}
