// Package mariadb implements store.Store on MariaDB/MySQL.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"facegreeter/internal/store"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	// parseTime is required so DATETIME columns scan into time.Time.
	if strings.Contains(dsn, "?") {
		dsn += "&parseTime=true"
	} else {
		dsn += "?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
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

// Migrate creates the schema.
func Migrate(ctx context.Context, pool *Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id                VARCHAR(36) PRIMARY KEY,
			name              TEXT NOT NULL,
			face_description  TEXT NOT NULL,
			registered_at     DATETIME(6) NOT NULL,
			last_seen_at      DATETIME(6) NOT NULL,
			interaction_count INT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS activity_log (
			id       VARCHAR(36) PRIMARY KEY,
			ts       DATETIME(6) NOT NULL,
			category VARCHAR(16) NOT NULL,
			message  TEXT NOT NULL,
			detail   TEXT NOT NULL,
			INDEX activity_log_ts_idx (ts)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id      VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			role    VARCHAR(16) NOT NULL,
			content TEXT NOT NULL,
			ts      DATETIME(6) NOT NULL,
			voice   BOOLEAN NOT NULL DEFAULT FALSE,
			INDEX messages_user_id_idx (user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS emotions (
			id         VARCHAR(36) PRIMARY KEY,
			user_id    VARCHAR(36) NOT NULL,
			emotion    VARCHAR(16) NOT NULL,
			confidence DOUBLE NOT NULL,
			ts         DATETIME(6) NOT NULL,
			INDEX emotions_user_id_idx (user_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// Store implements store.Store on MariaDB.
type Store struct {
	pool          *Pool
	users         *UserRepository
	logs          *LogRepository
	conversations *ConversationRepository
	emotions      *EmotionRepository
}

// NewStore connects, migrates, and returns a ready store.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := NewPool(dsn)
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
