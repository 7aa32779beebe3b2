package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"facegreeter/internal/store"
)

// UserRepository provides MariaDB-backed user storage.
type UserRepository struct {
	pool *Pool
}

func (r *UserRepository) Create(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (id, name, face_description, registered_at, last_seen_at, interaction_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.pool.db.ExecContext(ctx, query,
		user.ID, user.Name, user.FaceDescription,
		user.RegisteredAt, user.LastSeenAt, user.InteractionCount,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, name, face_description, registered_at, last_seen_at, interaction_count
		FROM users
		WHERE id = ?
	`

	var u store.User
	err := r.pool.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.FaceDescription,
		&u.RegisteredAt, &u.LastSeenAt, &u.InteractionCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]store.User, error) {
	query := `
		SELECT id, name, face_description, registered_at, last_seen_at, interaction_count
		FROM users
		ORDER BY registered_at
	`

	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []store.User
	for rows.Next() {
		var u store.User
		if err := rows.Scan(
			&u.ID, &u.Name, &u.FaceDescription,
			&u.RegisteredAt, &u.LastSeenAt, &u.InteractionCount,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) UpdateName(ctx context.Context, id, name string) error {
	result, err := r.pool.db.ExecContext(ctx, "UPDATE users SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}

	if _, err := r.pool.db.ExecContext(ctx, "DELETE FROM messages WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("delete user messages: %w", err)
	}
	if _, err := r.pool.db.ExecContext(ctx, "DELETE FROM emotions WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("delete user emotions: %w", err)
	}
	return nil
}

func (r *UserRepository) RecordInteraction(ctx context.Context, id string, seenAt time.Time) error {
	query := `
		UPDATE users
		SET last_seen_at = ?, interaction_count = interaction_count + 1
		WHERE id = ?
	`

	result, err := r.pool.db.ExecContext(ctx, query, seenAt, id)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// LogRepository provides MariaDB-backed activity log storage.
type LogRepository struct {
	pool *Pool
}

func (r *LogRepository) Append(ctx context.Context, entry *store.LogEntry) error {
	query := `
		INSERT INTO activity_log (id, ts, category, message, detail)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.pool.db.ExecContext(ctx, query,
		entry.ID, entry.Timestamp, string(entry.Category), entry.Message, entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}

	// MySQL cannot delete from a table referenced in a direct subquery,
	// hence the derived table alias.
	trim := `
		DELETE FROM activity_log
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id FROM activity_log ORDER BY ts DESC, id DESC LIMIT ?
			) recent
		)
	`
	if _, err := r.pool.db.ExecContext(ctx, trim, store.MaxLogEntries); err != nil {
		return fmt.Errorf("trim activity log: %w", err)
	}
	return nil
}

func (r *LogRepository) List(ctx context.Context, limit int) ([]store.LogEntry, error) {
	if limit <= 0 || limit > store.MaxLogEntries {
		limit = store.MaxLogEntries
	}

	query := `
		SELECT id, ts, category, message, detail
		FROM activity_log
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`

	rows, err := r.pool.db.QueryContext(ctx, query, limit)
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

// ConversationRepository provides MariaDB-backed chat history.
type ConversationRepository struct {
	pool *Pool
}

func (r *ConversationRepository) Append(ctx context.Context, msg *store.ConversationMessage) error {
	query := `
		INSERT INTO messages (id, user_id, role, content, ts, voice)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.pool.db.ExecContext(ctx, query,
		msg.ID, msg.UserID, msg.Role, msg.Content, msg.Timestamp, msg.Voice,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	trim := `
		DELETE FROM messages
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM (
				SELECT id FROM messages WHERE user_id = ? ORDER BY ts DESC, id DESC LIMIT ?
			) recent
		)
	`
	if _, err := r.pool.db.ExecContext(ctx, trim, msg.UserID, msg.UserID, store.MaxConversationMessages); err != nil {
		return fmt.Errorf("trim messages: %w", err)
	}
	return nil
}

func (r *ConversationRepository) History(ctx context.Context, userID string, limit int) ([]store.ConversationMessage, error) {
	if limit <= 0 || limit > store.MaxConversationMessages {
		limit = store.MaxConversationMessages
	}

	query := `
		SELECT id, user_id, role, content, ts, voice
		FROM (
			SELECT id, user_id, role, content, ts, voice
			FROM messages
			WHERE user_id = ?
			ORDER BY ts DESC, id DESC
			LIMIT ?
		) recent
		ORDER BY ts, id
	`

	rows, err := r.pool.db.QueryContext(ctx, query, userID, limit)
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

// EmotionRepository provides MariaDB-backed emotion history.
type EmotionRepository struct {
	pool *Pool
}

func (r *EmotionRepository) Append(ctx context.Context, rec *store.EmotionRecord) error {
	query := `
		INSERT INTO emotions (id, user_id, emotion, confidence, ts)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.pool.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Emotion, rec.Confidence, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append emotion: %w", err)
	}

	trim := `
		DELETE FROM emotions
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM (
				SELECT id FROM emotions WHERE user_id = ? ORDER BY ts DESC, id DESC LIMIT ?
			) recent
		)
	`
	if _, err := r.pool.db.ExecContext(ctx, trim, rec.UserID, rec.UserID, store.MaxEmotionRecords); err != nil {
		return fmt.Errorf("trim emotions: %w", err)
	}
	return nil
}

func (r *EmotionRepository) History(ctx context.Context, userID string, limit int) ([]store.EmotionRecord, error) {
	if limit <= 0 || limit > store.MaxEmotionRecords {
		limit = store.MaxEmotionRecords
	}

	query := `
		SELECT id, user_id, emotion, confidence, ts
		FROM emotions
		WHERE user_id = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`

	rows, err := r.pool.db.QueryContext(ctx, query, userID, limit)
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
