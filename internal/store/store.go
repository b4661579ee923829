// Package store persists canonical records with insert-or-update on
// natural keys. A NULL in an incoming record never erases a stored value.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/preston-bernstein/game-ingest-service/internal/domain"
	ierrors "github.com/preston-bernstein/game-ingest-service/internal/errors"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
)

const (
	EntityGame      = "game"
	EntitySubEvent  = "sub_event"
	EntityAggregate = "aggregate"
)

// Store is the IdempotentStore over database/sql.
type Store struct {
	db       *sql.DB
	driver   string
	logger   *slog.Logger
	recorder *metrics.Recorder
	now      func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(s *Store) { s.recorder = rec }
}

// WithClock overrides time.Now for updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps an open database and applies the schema.
func New(ctx context.Context, db *sql.DB, driver string, opts ...Option) (*Store, error) {
	s := &Store{db: db, driver: driver, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("store: migrate: %w", err)
		}
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertGames writes the batch in one transaction.
func (s *Store) UpsertGames(ctx context.Context, records []domain.GameRecord) error {
	return s.upsert(ctx, EntityGame, upsertGameSQL, len(records), func(stmt *sql.Stmt, i int) error {
		r := records[i]
		_, err := stmt.ExecContext(ctx,
			r.GameID,
			r.Date,
			formatTime(r.StartTime),
			r.Status,
			r.Competition,
			r.Home,
			r.Away,
			r.Venue,
			r.Source,
			r.Confidence,
			s.stamp(r.UpdatedAt),
		)
		return err
	})
}

// UpsertSubEvents writes the batch in one transaction.
func (s *Store) UpsertSubEvents(ctx context.Context, records []domain.SubEventRecord) error {
	return s.upsert(ctx, EntitySubEvent, upsertSubEventSQL, len(records), func(stmt *sql.Stmt, i int) error {
		r := records[i]
		_, err := stmt.ExecContext(ctx,
			r.GameID,
			r.Index,
			r.Sequence,
			r.RowHash,
			r.Source,
			r.Confidence,
			r.Participant,
			r.Description,
			r.PlateX,
			r.PlateZ,
			r.Zone,
			r.Payload,
			s.stamp(r.UpdatedAt),
		)
		return err
	})
}

// UpsertAggregates writes the batch in one transaction.
func (s *Store) UpsertAggregates(ctx context.Context, records []domain.AggregateRecord) error {
	return s.upsert(ctx, EntityAggregate, upsertAggregateSQL, len(records), func(stmt *sql.Stmt, i int) error {
		r := records[i]
		_, err := stmt.ExecContext(ctx,
			r.GameID,
			r.TotalSubEvents,
			r.DistinctParticipants,
			r.PrimarySource,
			r.Recommendation,
			r.Inconsistencies,
			s.stamp(r.UpdatedAt),
		)
		return err
	})
}

// upsert runs exec for every record inside one transaction. Any failure
// rolls the whole batch back so the caller can retry it as a unit.
func (s *Store) upsert(ctx context.Context, entity, query string, n int, exec func(*sql.Stmt, int) error) (err error) {
	if n == 0 {
		return nil
	}
	defer func() {
		s.recorder.RecordUpsert(entity, n, err)
		if err != nil {
			logging.Ctx(ctx, s.logger, slog.LevelError, "store upsert failed",
				"entity", entity,
				logging.FieldCount, n,
				"err", err,
			)
		}
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ierrors.StoreWriteFailure(entity, err)
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(query))
	if err != nil {
		_ = tx.Rollback()
		return ierrors.StoreWriteFailure(entity, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if execErr := exec(stmt, i); execErr != nil {
			_ = tx.Rollback()
			return ierrors.StoreWriteFailure(entity, fmt.Errorf("record %d: %w", i, execErr))
		}
	}
	if err := tx.Commit(); err != nil {
		return ierrors.StoreWriteFailure(entity, err)
	}
	return nil
}

// GetGame loads one game.
func (s *Store) GetGame(ctx context.Context, gameID string) (domain.GameRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT game_id, date, start_time, status, competition, home, away, venue, source, confidence, updated_at
		FROM games WHERE game_id = ?`), gameID)

	var (
		rec                                                                     domain.GameRecord
		date, start, status, competition, home, away, venue, source, confidence sql.NullString
		updated                                                                 string
	)
	err := row.Scan(&rec.GameID, &date, &start, &status, &competition, &home, &away, &venue, &source, &confidence, &updated)
	if ierrors.Is(err, sql.ErrNoRows) {
		return domain.GameRecord{}, false, nil
	}
	if err != nil {
		return domain.GameRecord{}, false, err
	}
	rec.Date = nullString(date)
	rec.StartTime = parseTime(start)
	rec.Status = nullString(status)
	rec.Competition = nullString(competition)
	rec.Home = nullString(home)
	rec.Away = nullString(away)
	rec.Venue = nullString(venue)
	rec.Source = nullString(source)
	rec.Confidence = nullString(confidence)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return rec, true, nil
}

// GamesOn lists games scheduled for date, ordered by start time.
func (s *Store) GamesOn(ctx context.Context, date string) ([]domain.GameRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT game_id FROM games WHERE date = ? ORDER BY start_time, game_id`), date)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	out := make([]domain.GameRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := s.GetGame(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// SubEvents lists a game's sub-events in (index, sequence) order.
func (s *Store) SubEvents(ctx context.Context, gameID string) ([]domain.SubEventRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT game_id, idx, seq, row_hash, source, confidence, participant, description, plate_x, plate_z, zone, payload, updated_at
		FROM sub_events WHERE game_id = ? ORDER BY idx, seq`), gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SubEventRecord
	for rows.Next() {
		var (
			rec                                                        domain.SubEventRecord
			hash, source, confidence, participant, desc, zone, payload sql.NullString
			px, pz                                                     sql.NullFloat64
			updated                                                    string
		)
		if err := rows.Scan(&rec.GameID, &rec.Index, &rec.Sequence, &hash, &source, &confidence, &participant, &desc, &px, &pz, &zone, &payload, &updated); err != nil {
			return nil, err
		}
		rec.RowHash = nullString(hash)
		rec.Source = nullString(source)
		rec.Confidence = nullString(confidence)
		rec.Participant = nullString(participant)
		rec.Description = nullString(desc)
		rec.PlateX = nullFloat(px)
		rec.PlateZ = nullFloat(pz)
		rec.Zone = nullString(zone)
		rec.Payload = nullString(payload)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetAggregate loads one aggregate.
func (s *Store) GetAggregate(ctx context.Context, gameID string) (domain.AggregateRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT game_id, total_sub_events, distinct_participants, primary_source, recommendation, inconsistencies, updated_at
		FROM aggregates WHERE game_id = ?`), gameID)

	var (
		rec                           domain.AggregateRecord
		total, distinct, inconsistent sql.NullInt64
		primarySource, recommendation sql.NullString
		updated                       string
	)
	err := row.Scan(&rec.GameID, &total, &distinct, &primarySource, &recommendation, &inconsistent, &updated)
	if ierrors.Is(err, sql.ErrNoRows) {
		return domain.AggregateRecord{}, false, nil
	}
	if err != nil {
		return domain.AggregateRecord{}, false, err
	}
	rec.TotalSubEvents = nullInt(total)
	rec.DistinctParticipants = nullInt(distinct)
	rec.PrimarySource = nullString(primarySource)
	rec.Recommendation = nullString(recommendation)
	rec.Inconsistencies = nullInt(inconsistent)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return rec, true, nil
}

// rebind converts ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) stamp(t time.Time) string {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(time.RFC3339)
	return &v
}

func parseTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}
