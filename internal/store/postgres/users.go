package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"facegreeter/internal/store"
)

// UserRepository provides PostgreSQL-backed user storage.
type UserRepository struct {
	pool *Pool
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (id, name, face_description, registered_at, last_seen_at, interaction_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Name, user.FaceDescription,
		user.RegisteredAt, user.LastSeenAt, user.InteractionCount,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, name, face_description, registered_at, last_seen_at, interaction_count
		FROM users
		WHERE id = $1
	`

	var u store.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
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

// List returns all users, oldest enrollment first.
func (r *UserRepository) List(ctx context.Context) ([]store.User, error) {
	query := `
		SELECT id, name, face_description, registered_at, last_seen_at, interaction_count
		FROM users
		ORDER BY registered_at
	`

	rows, err := r.pool.Query(ctx, query)
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

// UpdateName renames a user.
func (r *UserRepository) UpdateName(ctx context.Context, id, name string) error {
	result, err := r.pool.Exec(ctx, "UPDATE users SET name = $1 WHERE id = $2", name, id)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes a user and their conversation and emotion history.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}

	// No foreign keys: history cleanup is best-effort.
	if _, err := r.pool.Exec(ctx, "DELETE FROM messages WHERE user_id = $1", id); err != nil {
		return fmt.Errorf("delete user messages: %w", err)
	}
	if _, err := r.pool.Exec(ctx, "DELETE FROM emotions WHERE user_id = $1", id); err != nil {
		return fmt.Errorf("delete user emotions: %w", err)
	}
	return nil
}

// RecordInteraction bumps the interaction counter and last-seen timestamp.
func (r *UserRepository) RecordInteraction(ctx context.Context, id string, seenAt time.Time) error {
	query := `
		UPDATE users
		SET last_seen_at = $1, interaction_count = interaction_count + 1
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, seenAt, id)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
