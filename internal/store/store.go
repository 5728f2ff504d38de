// Package store persists gateway state in an embedded SQL database:
// caller API keys (hashed at rest) and per-provider settings. SQLite is the
// default backend; Postgres is selected by DSN for deployments that already
// run one. Schema changes are applied through linear numbered migrations.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	// Register Postgres SQL driver.
	_ "github.com/lib/pq"
	// Register SQLite SQL driver.
	_ "modernc.org/sqlite"
)

type sqlDialect string

const (
	dialectSQLite   sqlDialect = "sqlite"
	dialectPostgres sqlDialect = "postgres"
)

// Store wraps the gateway database. All operations are atomic at the
// statement level; no cross-operation transactions are required by callers.
type Store struct {
	db      *sql.DB
	dialect sqlDialect
}

// Open creates a SQLite-backed store. dsn can be a file path or SQLite DSN;
// empty selects the default database file next to the binary.
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "aicarousel.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	s := &Store{db: db, dialect: dialectSQLite}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres creates a Postgres-backed store.
func OpenPostgres(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	s := &Store{db: db, dialect: dialectPostgres}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping %s store: %w", s.dialect, err)
	}
	return s.Migrate()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// bind rewrites ?-placeholders to $n for Postgres. SQLite queries pass
// through unchanged.
func (s *Store) bind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var (
		b      strings.Builder
		argNum = 1
	)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			fmt.Fprintf(&b, "$%d", argNum)
			argNum++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
