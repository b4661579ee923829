package domain

import "time"

// GameRecord is the canonical game row keyed by GameID.
// Nil pointer fields mean "not observed" and never overwrite stored values.
type GameRecord struct {
	GameID      string
	Date        *string
	StartTime   *time.Time
	Status      *string
	Competition *string
	Home        *string
	Away        *string
	Venue       *string
	Source      *string
	Confidence  *string
	UpdatedAt   time.Time
}

// SubEventRecord is one pitch/play keyed by (GameID, Index, Sequence).
type SubEventRecord struct {
	GameID      string
	Index       int
	Sequence    int
	RowHash     *string
	Source      *string
	Confidence  *string
	Participant *string
	Description *string
	PlateX      *float64
	PlateZ      *float64
	Zone        *string
	Payload     *string
	UpdatedAt   time.Time
}

// AggregateRecord holds per-game totals keyed by GameID.
type AggregateRecord struct {
	GameID               string
	TotalSubEvents       *int64
	DistinctParticipants *int64
	PrimarySource        *string
	Recommendation       *string
	Inconsistencies      *int64
	UpdatedAt            time.Time
}

// StringPtr returns nil for empty strings.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// TimePtr returns nil for the zero time.
func TimePtr(v time.Time) *time.Time {
	if v.IsZero() {
		return nil
	}
	return &v
}
