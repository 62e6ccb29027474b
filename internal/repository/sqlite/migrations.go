package sqlite

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "knowledge_entries: shared knowledge pool",
		SQL: `
CREATE TABLE knowledge_entries (
    id                TEXT PRIMARY KEY,
    industry          TEXT NOT NULL,
    segment           TEXT NOT NULL DEFAULT '',
    problem_area      TEXT NOT NULL DEFAULT '',
    knowledge_type    TEXT NOT NULL,
    title             TEXT NOT NULL,
    content           TEXT NOT NULL DEFAULT '',
    confidence        REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
    last_verified_at  INTEGER NOT NULL,
    extraction_count  INTEGER NOT NULL DEFAULT 1 CHECK (extraction_count >= 1),
    tags              TEXT NOT NULL DEFAULT '[]',
    source_session_id TEXT,
    source_venture_id TEXT,
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL,

    UNIQUE (industry, knowledge_type, title)
);

CREATE INDEX idx_entries_industry_verified ON knowledge_entries(industry, last_verified_at DESC, id);
CREATE INDEX idx_entries_problem_area      ON knowledge_entries(problem_area);
`,
	},
	{
		Version:     2,
		Description: "accumulation_jobs: queued sessions",
		SQL: `
CREATE TABLE accumulation_jobs (
    id            TEXT PRIMARY KEY,
    session       TEXT NOT NULL,
    subject       TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
    retries       INTEGER NOT NULL DEFAULT 0,
    entries_saved INTEGER NOT NULL DEFAULT 0,
    error         TEXT,
    created_at    INTEGER NOT NULL,
    processed_at  INTEGER
);

CREATE INDEX idx_jobs_status_created ON accumulation_jobs(status, created_at);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
