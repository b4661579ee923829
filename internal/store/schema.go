package store

var schema = []string{
	`CREATE TABLE IF NOT EXISTS games (
		game_id     TEXT PRIMARY KEY,
		date        TEXT,
		start_time  TEXT,
		status      TEXT,
		competition TEXT,
		home        TEXT,
		away        TEXT,
		venue       TEXT,
		source      TEXT,
		confidence  TEXT,
		updated_at  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sub_events (
		game_id     TEXT NOT NULL,
		idx         BIGINT NOT NULL,
		seq         BIGINT NOT NULL,
		row_hash    TEXT,
		source      TEXT,
		confidence  TEXT,
		participant TEXT,
		description TEXT,
		plate_x     DOUBLE PRECISION,
		plate_z     DOUBLE PRECISION,
		zone        TEXT,
		payload     TEXT,
		updated_at  TEXT NOT NULL,
		PRIMARY KEY (game_id, idx, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS aggregates (
		game_id               TEXT PRIMARY KEY,
		total_sub_events      BIGINT,
		distinct_participants BIGINT,
		primary_source        TEXT,
		recommendation        TEXT,
		inconsistencies       BIGINT,
		updated_at            TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_games_date ON games (date)`,
}

// Every upsert keeps stored values where the incoming column is NULL.
const upsertGameSQL = `
INSERT INTO games (game_id, date, start_time, status, competition, home, away, venue, source, confidence, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id) DO UPDATE SET
	date        = COALESCE(excluded.date, games.date),
	start_time  = COALESCE(excluded.start_time, games.start_time),
	status      = COALESCE(excluded.status, games.status),
	competition = COALESCE(excluded.competition, games.competition),
	home        = COALESCE(excluded.home, games.home),
	away        = COALESCE(excluded.away, games.away),
	venue       = COALESCE(excluded.venue, games.venue),
	source      = COALESCE(excluded.source, games.source),
	confidence  = COALESCE(excluded.confidence, games.confidence),
	updated_at  = excluded.updated_at`

const upsertSubEventSQL = `
INSERT INTO sub_events (game_id, idx, seq, row_hash, source, confidence, participant, description, plate_x, plate_z, zone, payload, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id, idx, seq) DO UPDATE SET
	row_hash    = COALESCE(excluded.row_hash, sub_events.row_hash),
	source      = COALESCE(excluded.source, sub_events.source),
	confidence  = COALESCE(excluded.confidence, sub_events.confidence),
	participant = COALESCE(excluded.participant, sub_events.participant),
	description = COALESCE(excluded.description, sub_events.description),
	plate_x     = COALESCE(excluded.plate_x, sub_events.plate_x),
	plate_z     = COALESCE(excluded.plate_z, sub_events.plate_z),
	zone        = COALESCE(excluded.zone, sub_events.zone),
	payload     = COALESCE(excluded.payload, sub_events.payload),
	updated_at  = excluded.updated_at`

const upsertAggregateSQL = `
INSERT INTO aggregates (game_id, total_sub_events, distinct_participants, primary_source, recommendation, inconsistencies, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id) DO UPDATE SET
	total_sub_events      = COALESCE(excluded.total_sub_events, aggregates.total_sub_events),
	distinct_participants = COALESCE(excluded.distinct_participants, aggregates.distinct_participants),
	primary_source        = COALESCE(excluded.primary_source, aggregates.primary_source),
	recommendation        = COALESCE(excluded.recommendation, aggregates.recommendation),
	inconsistencies       = COALESCE(excluded.inconsistencies, aggregates.inconsistencies),
	updated_at            = excluded.updated_at`
