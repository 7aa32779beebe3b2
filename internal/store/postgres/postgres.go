// Package postgres implements store.Store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"facegreeter/internal/config"
	"facegreeter/internal/store"
)

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new PostgreSQL connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db}, nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Exec executes a statement.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.db.ExecContext(ctx, query, args...)
}

// QueryRow executes a query that returns a single row.
func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

// Query executes a query that returns multiple rows.
func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return p.db.QueryContext(ctx, query, args...)
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Migrate creates the schema. No migration framework: the schema is small
// and additive, CREATE TABLE IF NOT EXISTS is enough.
func Migrate(ctx context.Context, pool *Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id                VARCHAR(36) PRIMARY KEY,
			name              TEXT NOT NULL,
			face_description  TEXT NOT NULL,
			registered_at     TIMESTAMP WITH TIME ZONE NOT NULL,
			last_seen_at      TIMESTAMP WITH TIME ZONE NOT NULL,
			interaction_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS activity_log (
			id       VARCHAR(36) PRIMARY KEY,
			ts       TIMESTAMP WITH TIME ZONE NOT NULL,
			category VARCHAR(16) NOT NULL,
			message  TEXT NOT NULL,
			detail   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id      VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			role    VARCHAR(16) NOT NULL,
			content TEXT NOT NULL,
			ts      TIMESTAMP WITH TIME ZONE NOT NULL,
			voice   BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS emotions (
			id         VARCHAR(36) PRIMARY KEY,
			user_id    VARCHAR(36) NOT NULL,
			emotion    VARCHAR(16) NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			ts         TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_user_id_idx ON messages(user_id)`,
		`CREATE INDEX IF NOT EXISTS emotions_user_id_idx ON emotions(user_id)`,
		`CREATE INDEX IF NOT EXISTS activity_log_ts_idx ON activity_log(ts)`,
	}

	for _, stmt := range statements {
		if _, err := pool.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// Store implements store.Store on PostgreSQL.
type Store struct {
	pool          *Pool
	users         *UserRepository
	logs          *LogRepository
	conversations *ConversationRepository
	emotions      *EmotionRepository
}

// NewStore connects, migrates, and returns a ready store.
func NewStore(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{
		pool:          pool,
		users:         &UserRepository{pool: pool},
		logs:          &LogRepository{pool: pool},
		conversations: &ConversationRepository{pool: pool},
		emotions:      &EmotionRepository{pool: pool},
	}, nil
}

func (s *Store) Users() store.UserRepository                 { return s.users }
func (s *Store) Logs() store.LogRepository                   { return s.logs }
func (s *Store) Conversations() store.ConversationRepository { return s.conversations }
func (s *Store) Emotions() store.EmotionRepository           { return s.emotions }

func (s *Store) Close() error {
	return s.pool.Close()
}
