package reconcile

import "time"

// Metric names produced by Summarize.
const (
	MetricTotalSubEvents       = "total_sub_events"
	MetricDistinctParticipants = "distinct_participants"
)

// Severity grades a disagreement.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Recommendation tells downstream which data to trust.
type Recommendation string

const (
	UsePrimary   Recommendation = "use_primary"
	UseSecondary Recommendation = "use_secondary"
	Combine      Recommendation = "combine"
	ManualReview Recommendation = "manual_review"
)

// Dataset is one source's summary of a game. A nil metric was not observed.
type Dataset struct {
	Source  string
	Metrics map[string]*int
}

// Empty reports whether nothing at all was observed.
func (d *Dataset) Empty() bool {
	if d == nil {
		return true
	}
	for _, v := range d.Metrics {
		if v != nil {
			return false
		}
	}
	return true
}

func (d *Dataset) value(name string) *int {
	if d == nil || d.Metrics == nil {
		return nil
	}
	return d.Metrics[name]
}

func (d *Dataset) source(fallback string) string {
	if d == nil || d.Source == "" {
		return fallback
	}
	return d.Source
}

// Inconsistency is one metric the two sources disagree on.
type Inconsistency struct {
	Field    string   `json:"field"`
	ValueA   int      `json:"valueA"`
	ValueB   int      `json:"valueB"`
	Severity Severity `json:"severity"`
}

// MissingData lists metrics a source did not report.
type MissingData struct {
	Source string   `json:"source"`
	Fields []string `json:"fields"`
}

// ValidationResult is the outcome of comparing two datasets for one game.
type ValidationResult struct {
	GameID          string          `json:"gameId"`
	PrimarySource   string          `json:"primarySource"`
	SecondarySource string          `json:"secondarySource"`
	Inconsistencies []Inconsistency `json:"inconsistencies"`
	MissingData     []MissingData   `json:"missingData"`
	Recommendation  Recommendation  `json:"recommendation"`
	ValidatedAt     time.Time       `json:"validatedAt"`
}

// HasSeverity reports whether any inconsistency is at least s.
func (r ValidationResult) HasSeverity(s Severity) bool {
	for _, inc := range r.Inconsistencies {
		if severityRank(inc.Severity) >= severityRank(s) {
			return true
		}
	}
	return false
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}
