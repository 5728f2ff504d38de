package store

import (
	"database/sql"
	"fmt"
)

// migration is one numbered schema step. Names are recorded in _migrations
// so re-running Migrate is a no-op for already-applied steps.
type migration struct {
	name     string
	sqlite   string
	postgres string
}

var migrations = []migration{
	{
		name: "001_create_api_keys",
		sqlite: `
CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY,
	key_hash TEXT UNIQUE NOT NULL,
	key_prefix TEXT NOT NULL,
	name TEXT NULL,
	created_at DATETIME NOT NULL,
	last_used_at DATETIME NULL,
	is_active BOOLEAN NOT NULL DEFAULT 1,
	usage_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_api_keys_key_hash ON api_keys(key_hash);`,
		postgres: `
CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY,
	key_hash TEXT UNIQUE NOT NULL,
	key_prefix TEXT NOT NULL,
	name TEXT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	last_used_at TIMESTAMPTZ NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	usage_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_api_keys_key_hash ON api_keys(key_hash);`,
	},
	{
		name: "002_create_provider_settings",
		sqlite: `
CREATE TABLE IF NOT EXISTS provider_settings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	provider_key TEXT UNIQUE NOT NULL,
	is_enabled BOOLEAN NOT NULL DEFAULT 1,
	priority INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);`,
		postgres: `
CREATE TABLE IF NOT EXISTS provider_settings (
	id SERIAL PRIMARY KEY,
	provider_key TEXT UNIQUE NOT NULL,
	is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	priority INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`,
	},
}

// Migrate applies every pending migration in order. It is idempotent:
// applied names are recorded in _migrations and skipped on later runs.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create _migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := s.migrationApplied(m.name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		ddl := m.sqlite
		if s.dialect == dialectPostgres {
			ddl = m.postgres
		}
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if _, err := s.db.Exec(s.bind(`INSERT INTO _migrations(name) VALUES(?)`), m.name); err != nil {
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
	}
	return nil
}

func (s *Store) migrationApplied(name string) (bool, error) {
	var found string
	err := s.db.QueryRow(s.bind(`SELECT name FROM _migrations WHERE name = ?`), name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}
	return true, nil
}
