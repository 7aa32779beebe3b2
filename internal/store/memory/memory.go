// Package memory implements store.Store in process memory. It is the
// default backend when no database is configured (the demo equivalent of
// the browser's localStorage) and doubles as the test store, with error
// injection fields on every repository.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"facegreeter/internal/store"
)

// Store implements store.Store in memory.
type Store struct {
	users         *UserRepository
	logs          *LogRepository
	conversations *ConversationRepository
	emotions      *EmotionRepository
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:         &UserRepository{users: make(map[string]*store.User)},
		logs:          &LogRepository{},
		conversations: &ConversationRepository{messages: make(map[string][]store.ConversationMessage)},
		emotions:      &EmotionRepository{records: make(map[string][]store.EmotionRecord)},
	}
}

func (s *Store) Users() store.UserRepository                 { return s.users }
func (s *Store) Logs() store.LogRepository                   { return s.logs }
func (s *Store) Conversations() store.ConversationRepository { return s.conversations }
func (s *Store) Emotions() store.EmotionRepository           { return s.emotions }

func (s *Store) Close() error { return nil }

// UserRepository is an in-memory implementation of store.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*store.User

	// Error injection for tests.
	CreateError error
	GetError    error
	ListError   error
	UpdateError error
	DeleteError error
}

func (r *UserRepository) Create(ctx context.Context, user *store.User) error {
	if r.CreateError != nil {
		return r.CreateError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u := *user
	r.users[user.ID] = &u
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (*store.User, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *UserRepository) List(ctx context.Context) ([]store.User, error) {
	if r.ListError != nil {
		return nil, r.ListError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]store.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].RegisteredAt.Before(users[j].RegisteredAt)
	})
	return users, nil
}

func (r *UserRepository) UpdateName(ctx context.Context, id, name string) error {
	if r.UpdateError != nil {
		return r.UpdateError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Name = name
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if r.DeleteError != nil {
		return r.DeleteError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *UserRepository) RecordInteraction(ctx context.Context, id string, seenAt time.Time) error {
	if r.UpdateError != nil {
		return r.UpdateError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.LastSeenAt = seenAt
	u.InteractionCount++
	return nil
}

// LogRepository is an in-memory implementation of store.LogRepository.
type LogRepository struct {
	mu      sync.RWMutex
	entries []store.LogEntry // newest first

	AppendError error
	ListError   error
}

func (r *LogRepository) Append(ctx context.Context, entry *store.LogEntry) error {
	if r.AppendError != nil {
		return r.AppendError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]store.LogEntry{*entry}, r.entries...)
	if len(r.entries) > store.MaxLogEntries {
		r.entries = r.entries[:store.MaxLogEntries]
	}
	return nil
}

func (r *LogRepository) List(ctx context.Context, limit int) ([]store.LogEntry, error) {
	if r.ListError != nil {
		return nil, r.ListError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.entries) {
		limit = len(r.entries)
	}
	out := make([]store.LogEntry, limit)
	copy(out, r.entries[:limit])
	return out, nil
}

// ConversationRepository is an in-memory implementation of store.ConversationRepository.
type ConversationRepository struct {
	mu       sync.RWMutex
	messages map[string][]store.ConversationMessage // per user, chronological

	AppendError  error
	HistoryError error
}

func (r *ConversationRepository) Append(ctx context.Context, msg *store.ConversationMessage) error {
	if r.AppendError != nil {
		return r.AppendError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := append(r.messages[msg.UserID], *msg)
	if len(msgs) > store.MaxConversationMessages {
		msgs = msgs[len(msgs)-store.MaxConversationMessages:]
	}
	r.messages[msg.UserID] = msgs
	return nil
}

func (r *ConversationRepository) History(ctx context.Context, userID string, limit int) ([]store.ConversationMessage, error) {
	if r.HistoryError != nil {
		return nil, r.HistoryError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := r.messages[userID]
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}
	out := make([]store.ConversationMessage, limit)
	copy(out, msgs[len(msgs)-limit:])
	return out, nil
}

// EmotionRepository is an in-memory implementation of store.EmotionRepository.
type EmotionRepository struct {
	mu      sync.RWMutex
	records map[string][]store.EmotionRecord // per user, newest first

	AppendError  error
	HistoryError error
}

func (r *EmotionRepository) Append(ctx context.Context, rec *store.EmotionRecord) error {
	if r.AppendError != nil {
		return r.AppendError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	records := append([]store.EmotionRecord{*rec}, r.records[rec.UserID]...)
	if len(records) > store.MaxEmotionRecords {
		records = records[:store.MaxEmotionRecords]
	}
	r.records[rec.UserID] = records
	return nil
}

func (r *EmotionRepository) History(ctx context.Context, userID string, limit int) ([]store.EmotionRecord, error) {
	if r.HistoryError != nil {
		return nil, r.HistoryError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.records[userID]
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}
	out := make([]store.EmotionRecord, limit)
	copy(out, records[:limit])
	return out, nil
}
