// Package store defines the persistence model: users, the activity log,
// per-user conversations, and per-user emotion history. Storage is flat
// key-value style with no relational integrity and a single-writer
// assumption; capped lists are trimmed on insert.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// List caps. Inserts beyond a cap evict the oldest records.
const (
	MaxLogEntries           = 100 // activity log, global
	MaxConversationMessages = 50  // per user
	MaxEmotionRecords       = 20  // per user
)

// User is an enrolled person. FaceDescription is free text produced by an
// AI provider at enrollment, not an embedding.
type User struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	FaceDescription  string    `json:"face_description"`
	RegisteredAt     time.Time `json:"registered_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	InteractionCount int       `json:"interaction_count"`
}

// LogCategory classifies activity log entries.
type LogCategory string

const (
	LogInfo        LogCategory = "info"
	LogWarning     LogCategory = "warning"
	LogError       LogCategory = "error"
	LogSuccess     LogCategory = "success"
	LogRecognition LogCategory = "recognition"
)

// LogEntry is one row of the append-only activity log.
type LogEntry struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Category  LogCategory `json:"category"`
	Message   string      `json:"message"`
	Detail    string      `json:"detail,omitempty"`
}

// ConversationMessage is one chat turn, persisted per user.
type ConversationMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Voice     bool      `json:"voice"` // true when the turn came in via speech recognition
}

// EmotionRecord is one emotion analysis result in a user's history.
type EmotionRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Emotion    string    `json:"emotion"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// UserRepository manages enrolled users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdateName(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
	// RecordInteraction bumps the interaction count and last-seen timestamp
	// after a successful recognition match.
	RecordInteraction(ctx context.Context, id string, seenAt time.Time) error
}

// LogRepository manages the capped activity log.
type LogRepository interface {
	Append(ctx context.Context, entry *LogEntry) error
	// List returns the most recent entries, newest first.
	List(ctx context.Context, limit int) ([]LogEntry, error)
}

// ConversationRepository manages per-user chat history.
type ConversationRepository interface {
	Append(ctx context.Context, msg *ConversationMessage) error
	// History returns a user's most recent messages in chronological order.
	History(ctx context.Context, userID string, limit int) ([]ConversationMessage, error)
}

// EmotionRepository manages per-user emotion history.
type EmotionRepository interface {
	Append(ctx context.Context, rec *EmotionRecord) error
	// History returns a user's most recent records, newest first.
	History(ctx context.Context, userID string, limit int) ([]EmotionRecord, error)
}

// Store bundles the repositories of one backend.
type Store interface {
	Users() UserRepository
	Logs() LogRepository
	Conversations() ConversationRepository
	Emotions() EmotionRepository
	Close() error
}
