package poller

import (
	"encoding/json"
	"strconv"

	"github.com/preston-bernstein/game-ingest-service/internal/coords"
	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	"github.com/preston-bernstein/game-ingest-service/internal/ingest"
	"github.com/preston-bernstein/game-ingest-service/internal/providers"
	"github.com/preston-bernstein/game-ingest-service/internal/reconcile"
	"github.com/preston-bernstein/game-ingest-service/internal/schedule"
)

// subEventRecord maps a timeline record onto its canonical record. The
// row's own sequence field wins; otherwise its timeline ordinal is used.
func subEventRecord(task schedule.LiveTask, a providers.Adapter, rec ingest.PendingRecord) domain.SubEventRecord {
	row := rec.Row()
	seq := rec.Ordinal
	if v, err := strconv.Atoi(row.Field(providers.FieldSequence)); err == nil {
		seq = v
	}
	confidence := row.Field(coords.FieldConfidence)
	if confidence == "" {
		confidence = string(rec.Confidence)
	}
	if confidence == "" {
		confidence = string(a.Confidence())
	}
	out := domain.SubEventRecord{
		GameID:      task.ID,
		Index:       task.Index,
		Sequence:    seq,
		RowHash:     domain.StringPtr(rec.RowHash),
		Source:      domain.StringPtr(a.Name()),
		Confidence:  domain.StringPtr(confidence),
		Participant: domain.StringPtr(row.Field(providers.FieldParticipant)),
		Description: domain.StringPtr(row.Field(providers.FieldDescription)),
		Zone:        domain.StringPtr(row.Field(coords.FieldZone)),
	}
	if x, ok := row.FloatField(coords.FieldPlateX); ok {
		out.PlateX = domain.Float64Ptr(x)
	}
	if z, ok := row.FloatField(coords.FieldPlateZ); ok {
		out.PlateZ = domain.Float64Ptr(z)
	}
	if payload, err := json.Marshal(row); err == nil {
		out.Payload = domain.StringPtr(string(payload))
	}
	return out
}

func aggregateRecord(result reconcile.ValidationResult, primary, secondary *reconcile.Dataset) domain.AggregateRecord {
	resolved := reconcile.Resolve(result, primary, secondary)
	rec := domain.AggregateRecord{
		GameID:          result.GameID,
		PrimarySource:   domain.StringPtr(result.PrimarySource),
		Recommendation:  domain.StringPtr(string(result.Recommendation)),
		Inconsistencies: domain.Int64Ptr(int64(len(result.Inconsistencies))),
		UpdatedAt:       result.ValidatedAt,
	}
	if v := resolved[reconcile.MetricTotalSubEvents]; v != nil {
		rec.TotalSubEvents = domain.Int64Ptr(int64(*v))
	}
	if v := resolved[reconcile.MetricDistinctParticipants]; v != nil {
		rec.DistinctParticipants = domain.Int64Ptr(int64(*v))
	}
	return rec
}
