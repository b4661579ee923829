package ingest

import (
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/domain"
)

// TimelineRecord is one immutable line of a stream's timeline.
type TimelineRecord struct {
	Cells      []string          `json:"cells"`
	Fields     map[string]string `json:"fields,omitempty"`
	RowHash    string            `json:"rowHash"`
	GameID     string            `json:"gameId"`
	Index      int               `json:"index"`
	Confidence domain.Confidence `json:"confidence"`
	Source     string            `json:"source,omitempty"`
	IngestedAt time.Time         `json:"ingestedAt"`
}

// Row returns the source row the record was built from.
func (r TimelineRecord) Row() domain.Row {
	return domain.Row{Cells: r.Cells, Fields: r.Fields}
}

// PendingRecord is a timeline record not yet committed downstream, with
// its 1-based position in the timeline.
type PendingRecord struct {
	TimelineRecord
	Ordinal int
}

// SnapshotRow is a row in the latest snapshot with its content hash.
type SnapshotRow struct {
	domain.Row
	RowHash string `json:"rowHash"`
}

// LatestSnapshot is the most recent full view of a stream.
type LatestSnapshot struct {
	GameID     string            `json:"gameId"`
	Index      int               `json:"index"`
	Source     string            `json:"source,omitempty"`
	Confidence domain.Confidence `json:"confidence"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Rows       []SnapshotRow     `json:"rows"`
}

// Result summarizes one ingestion call. TotalRows counts the batch;
// TimelineRows counts everything ever appended to the stream.
type Result struct {
	NewRows      int
	TotalRows    int
	TimelineRows int
	Added        []SnapshotRow
}
