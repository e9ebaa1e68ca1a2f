package repository

// Domain dates (event_date, publish_date, date ranges) are stored without a
// zone and are always UTC wall-clock values.

const postgresSchema = `
CREATE TABLE IF NOT EXISTS timelines (
	id               TEXT PRIMARY KEY,
	topic            TEXT NOT NULL,
	query            TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'processing',
	progress         TEXT NOT NULL DEFAULT '0/0',
	date_range_start TIMESTAMP,
	date_range_end   TIMESTAMP,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	timeline_id TEXT NOT NULL REFERENCES timelines(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	description TEXT,
	event_date  TIMESTAMP NOT NULL,
	priority    TEXT NOT NULL DEFAULT 'medium',
	event_order INTEGER NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (timeline_id, event_order)
);

CREATE TABLE IF NOT EXISTS branches (
	id                TEXT PRIMARY KEY,
	event_id          TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	narrative         TEXT NOT NULL,
	credibility_score DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	evidence          TEXT,
	source_count      INTEGER NOT NULL DEFAULT 0 CHECK (source_count >= 0),
	position          INTEGER NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sources (
	id                TEXT PRIMARY KEY,
	event_id          TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	branch_id         TEXT REFERENCES branches(id) ON DELETE SET NULL,
	url               TEXT NOT NULL DEFAULT '',
	outlet            TEXT NOT NULL DEFAULT 'Unknown',
	credibility_score DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	publish_date      TIMESTAMP,
	claims            JSONB NOT NULL DEFAULT '[]',
	position          INTEGER NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_events_timeline ON events (timeline_id, event_order);
CREATE INDEX IF NOT EXISTS idx_branches_event ON branches (event_id, position);
CREATE INDEX IF NOT EXISTS idx_sources_event ON sources (event_id, position);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS timelines (
	id               TEXT PRIMARY KEY,
	topic            TEXT NOT NULL,
	query            TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'processing',
	progress         TEXT NOT NULL DEFAULT '0/0',
	date_range_start TEXT,
	date_range_end   TEXT,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	timeline_id TEXT NOT NULL REFERENCES timelines(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	description TEXT,
	event_date  TEXT NOT NULL,
	priority    TEXT NOT NULL DEFAULT 'medium',
	event_order INTEGER NOT NULL,
	created_at  TEXT NOT NULL,
	UNIQUE (timeline_id, event_order)
);

CREATE TABLE IF NOT EXISTS branches (
	id                TEXT PRIMARY KEY,
	event_id          TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	narrative         TEXT NOT NULL,
	credibility_score REAL NOT NULL DEFAULT 0.5,
	evidence          TEXT,
	source_count      INTEGER NOT NULL DEFAULT 0 CHECK (source_count >= 0),
	position          INTEGER NOT NULL,
	created_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sources (
	id                TEXT PRIMARY KEY,
	event_id          TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	branch_id         TEXT REFERENCES branches(id) ON DELETE SET NULL,
	url               TEXT NOT NULL DEFAULT '',
	outlet            TEXT NOT NULL DEFAULT 'Unknown',
	credibility_score REAL NOT NULL DEFAULT 0.5,
	publish_date      TEXT,
	claims            TEXT NOT NULL DEFAULT '[]',
	position          INTEGER NOT NULL,
	created_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_timeline ON events (timeline_id, event_order);
CREATE INDEX IF NOT EXISTS idx_branches_event ON branches (event_id, position);
CREATE INDEX IF NOT EXISTS idx_sources_event ON sources (event_id, position);
`
