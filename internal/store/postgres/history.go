package postgres

import (
	"context"
	"fmt"

	"facegreeter/internal/store"
)

// LogRepository provides PostgreSQL-backed activity log storage.
type LogRepository struct {
	pool *Pool
}

// Append inserts a log entry and trims the log to its cap.
func (r *LogRepository) Append(ctx context.Context, entry *store.LogEntry) error {
	query := `
		INSERT INTO activity_log (id, ts, category, message, detail)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.Timestamp, string(entry.Category), entry.Message, entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}

	trim := `
		DELETE FROM activity_log
		WHERE id NOT IN (
			SELECT id FROM activity_log ORDER BY ts DESC, id DESC LIMIT $1
		)
	`
	if _, err := r.pool.Exec(ctx, trim, store.MaxLogEntries); err != nil {
		return fmt.Errorf("trim activity log: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (r *LogRepository) List(ctx context.Context, limit int) ([]store.LogEntry, error) {
	if limit <= 0 || limit > store.MaxLogEntries {
		limit = store.MaxLogEntries
	}

	query := `
		SELECT id, ts, category, message, detail
		FROM activity_log
		ORDER BY ts DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	defer rows.Close()

	var entries []store.LogEntry
	for rows.Next() {
		var e store.LogEntry
		var category string
		if err := rows.Scan(&e.ID, &e.Timestamp, &category, &e.Message, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		e.Category = store.LogCategory(category)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	return entries, nil
}

// ConversationRepository provides PostgreSQL-backed chat history.
type ConversationRepository struct {
	pool *Pool
}

// Append inserts a message and trims the user's history to its cap.
func (r *ConversationRepository) Append(ctx context.Context, msg *store.ConversationMessage) error {
	query := `
		INSERT INTO messages (id, user_id, role, content, ts, voice)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.UserID, msg.Role, msg.Content, msg.Timestamp, msg.Voice,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	trim := `
		DELETE FROM messages
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM messages WHERE user_id = $1 ORDER BY ts DESC, id DESC LIMIT $2
		)
	`
	if _, err := r.pool.Exec(ctx, trim, msg.UserID, store.MaxConversationMessages); err != nil {
		return fmt.Errorf("trim messages: %w", err)
	}
	return nil
}

// History returns a user's most recent messages in chronological order.
func (r *ConversationRepository) History(ctx context.Context, userID string, limit int) ([]store.ConversationMessage, error) {
	if limit <= 0 || limit > store.MaxConversationMessages {
		limit = store.MaxConversationMessages
	}

	query := `
		SELECT id, user_id, role, content, ts, voice
		FROM (
			SELECT id, user_id, role, content, ts, voice
			FROM messages
			WHERE user_id = $1
			ORDER BY ts DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY ts, id
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []store.ConversationMessage
	for rows.Next() {
		var m store.ConversationMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.Timestamp, &m.Voice); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// EmotionRepository provides PostgreSQL-backed emotion history.
type EmotionRepository struct {
	pool *Pool
}

// Append inserts an emotion record and trims the user's history to its cap.
func (r *EmotionRepository) Append(ctx context.Context, rec *store.EmotionRecord) error {
	query := `
		INSERT INTO emotions (id, user_id, emotion, confidence, ts)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.Emotion, rec.Confidence, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append emotion: %w", err)
	}

	trim := `
		DELETE FROM emotions
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM emotions WHERE user_id = $1 ORDER BY ts DESC, id DESC LIMIT $2
		)
	`
	if _, err := r.pool.Exec(ctx, trim, rec.UserID, store.MaxEmotionRecords); err != nil {
		return fmt.Errorf("trim emotions: %w", err)
	}
	return nil
}

// History returns a user's most recent emotion records, newest first.
func (r *EmotionRepository) History(ctx context.Context, userID string, limit int) ([]store.EmotionRecord, error) {
	if limit <= 0 || limit > store.MaxEmotionRecords {
		limit = store.MaxEmotionRecords
	}

	query := `
		SELECT id, user_id, emotion, confidence, ts
		FROM emotions
		WHERE user_id = $1
		ORDER BY ts DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list emotions: %w", err)
	}
	defer rows.Close()

	var records []store.EmotionRecord
	for rows.Next() {
		var e store.EmotionRecord
		if err := rows.Scan(&e.ID, &e.UserID, &e.Emotion, &e.Confidence, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan emotion: %w", err)
		}
		records = append(records, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list emotions: %w", err)
	}
	return records, nil
}
