// Package sqlstore implements authkit.UserStore and authkit.SettingStore on
// top of sqlx.
//
// Two drivers are supported: "sqlite" (modernc.org/sqlite, pure Go, used for
// embedded deployments and tests) and "postgres" (github.com/lib/pq).
// Queries are written with '?' placeholders and rebound per driver.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the driver and sizes the connection pool.
type Config struct {
	Driver          string
	DSN             string
	MaxConns        int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// Store is a SQL-backed user and settings store.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects, sizes the pool and verifies connectivity with a ping.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 5
	}
	if cfg.Driver == DriverSQLite {
		// one writer at a time
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	db.SetConnMaxLifetime(lifetime)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &Store{db: db, driver: cfg.Driver}, nil
}

// New wraps an existing connection. driver must match the one db was
// opened with.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, driver: db.DriverName()}
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// EnsureSchema creates the users and user_settings tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := sqliteSchema
	if s.driver == DriverPostgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		name              TEXT NOT NULL UNIQUE,
		nice_name         TEXT NOT NULL DEFAULT '',
		email             TEXT NOT NULL UNIQUE,
		password_hash     TEXT NULL,
		activation_hash   TEXT NULL,
		reset_hash        TEXT NULL,
		reset_expires_at  TIMESTAMP NULL,
		session_id        TEXT NULL,
		remember_token    TEXT NULL,
		status            INTEGER NOT NULL DEFAULT 0,
		account_type      INTEGER NOT NULL DEFAULT 1,
		deleted           BOOLEAN NOT NULL DEFAULT 0,
		deleted_at        TIMESTAMP NULL,
		suspended_until   TIMESTAMP NULL,
		failed_logins     INTEGER NOT NULL DEFAULT 0,
		last_failed_login TIMESTAMP NULL,
		last_login_at     TIMESTAMP NULL,
		created_at        TIMESTAMP NOT NULL,
		has_avatar        BOOLEAN NOT NULL DEFAULT 0,
		avatar_id         TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id       INTEGER NOT NULL,
		setting_key   TEXT NOT NULL,
		setting_value TEXT NOT NULL,
		PRIMARY KEY (user_id, setting_key)
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                BIGSERIAL PRIMARY KEY,
		name              VARCHAR(64) NOT NULL UNIQUE,
		nice_name         VARCHAR(64) NOT NULL DEFAULT '',
		email             VARCHAR(254) NOT NULL UNIQUE,
		password_hash     TEXT NULL,
		activation_hash   CHAR(40) NULL,
		reset_hash        CHAR(40) NULL,
		reset_expires_at  TIMESTAMPTZ NULL,
		session_id        TEXT NULL,
		remember_token    CHAR(64) NULL,
		status            SMALLINT NOT NULL DEFAULT 0,
		account_type      SMALLINT NOT NULL DEFAULT 1,
		deleted           BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at        TIMESTAMPTZ NULL,
		suspended_until   TIMESTAMPTZ NULL,
		failed_logins     INTEGER NOT NULL DEFAULT 0,
		last_failed_login TIMESTAMPTZ NULL,
		last_login_at     TIMESTAMPTZ NULL,
		created_at        TIMESTAMPTZ NOT NULL,
		has_avatar        BOOLEAN NOT NULL DEFAULT FALSE,
		avatar_id         TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id       BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		setting_key   VARCHAR(128) NOT NULL,
		setting_value TEXT NOT NULL,
		PRIMARY KEY (user_id, setting_key)
	)`,
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

// exec runs a guarded statement and returns the affected row count.
func (s *Store) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: getting rows affected: %w", op, err)
	}
	return n, nil
}

// isUniqueViolation recognizes unique constraint failures of both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
