package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"facegreeter/internal/store"
)

func TestUserLifecycle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	user := &store.User{
		ID:              "u1",
		Name:            "Alice",
		FaceDescription: "short dark hair, round glasses",
		RegisteredAt:    time.Now(),
	}
	if err := s.Users().Create(ctx, user); err != nil {
		t.Fatalf("could not create user: %v", err)
	}

	got, err := s.Users().Get(ctx, "u1")
	if err != nil {
		t.Fatalf("could not get user: %v", err)
	}
	if got.Name != "Alice" {
		t.Errorf("expected name Alice, got %q", got.Name)
	}

	if err := s.Users().UpdateName(ctx, "u1", "Alicia"); err != nil {
		t.Fatalf("could not rename user: %v", err)
	}

	seenAt := time.Now()
	if err := s.Users().RecordInteraction(ctx, "u1", seenAt); err != nil {
		t.Fatalf("could not record interaction: %v", err)
	}

	got, err = s.Users().Get(ctx, "u1")
	if err != nil {
		t.Fatalf("could not get user: %v", err)
	}
	if got.Name != "Alicia" {
		t.Errorf("expected renamed user, got %q", got.Name)
	}
	if got.InteractionCount != 1 {
		t.Errorf("expected interaction count 1, got %d", got.InteractionCount)
	}
	if !got.LastSeenAt.Equal(seenAt) {
		t.Errorf("expected last seen %v, got %v", seenAt, got.LastSeenAt)
	}

	if err := s.Users().Delete(ctx, "u1"); err != nil {
		t.Fatalf("could not delete user: %v", err)
	}
	if _, err := s.Users().Get(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestUserNotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.Users().Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Users().UpdateName(ctx, "missing", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Users().RecordInteraction(ctx, "missing", time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLogCapEvictsOldest(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for i := 0; i < store.MaxLogEntries+10; i++ {
		entry := &store.LogEntry{
			ID:        fmt.Sprintf("log-%d", i),
			Timestamp: time.Now(),
			Category:  store.LogInfo,
			Message:   fmt.Sprintf("entry %d", i),
		}
		if err := s.Logs().Append(ctx, entry); err != nil {
			t.Fatalf("could not append log entry: %v", err)
		}
	}

	entries, err := s.Logs().List(ctx, 0)
	if err != nil {
		t.Fatalf("could not list log entries: %v", err)
	}
	if len(entries) != store.MaxLogEntries {
		t.Fatalf("expected %d entries, got %d", store.MaxLogEntries, len(entries))
	}
	// Newest first, oldest 10 evicted.
	if entries[0].ID != fmt.Sprintf("log-%d", store.MaxLogEntries+9) {
		t.Errorf("expected newest entry first, got %q", entries[0].ID)
	}
	if entries[len(entries)-1].ID != "log-10" {
		t.Errorf("expected oldest surviving entry log-10, got %q", entries[len(entries)-1].ID)
	}
}

func TestConversationCapPerUser(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for i := 0; i < store.MaxConversationMessages+5; i++ {
		msg := &store.ConversationMessage{
			ID:        fmt.Sprintf("msg-%d", i),
			UserID:    "u1",
			Role:      "user",
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: time.Now(),
		}
		if err := s.Conversations().Append(ctx, msg); err != nil {
			t.Fatalf("could not append message: %v", err)
		}
	}
	// A second user's history is independent.
	other := &store.ConversationMessage{ID: "other", UserID: "u2", Role: "user", Content: "hi"}
	if err := s.Conversations().Append(ctx, other); err != nil {
		t.Fatalf("could not append message: %v", err)
	}

	history, err := s.Conversations().History(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("could not load history: %v", err)
	}
	if len(history) != store.MaxConversationMessages {
		t.Fatalf("expected %d messages, got %d", store.MaxConversationMessages, len(history))
	}
	// Chronological order, oldest 5 evicted.
	if history[0].ID != "msg-5" {
		t.Errorf("expected oldest surviving message msg-5, got %q", history[0].ID)
	}
	if history[len(history)-1].ID != fmt.Sprintf("msg-%d", store.MaxConversationMessages+4) {
		t.Errorf("expected newest message last, got %q", history[len(history)-1].ID)
	}

	otherHistory, err := s.Conversations().History(ctx, "u2", 0)
	if err != nil {
		t.Fatalf("could not load history: %v", err)
	}
	if len(otherHistory) != 1 {
		t.Errorf("expected 1 message for second user, got %d", len(otherHistory))
	}
}

func TestEmotionCapPerUser(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for i := 0; i < store.MaxEmotionRecords+3; i++ {
		rec := &store.EmotionRecord{
			ID:         fmt.Sprintf("emo-%d", i),
			UserID:     "u1",
			Emotion:    "happy",
			Confidence: 0.9,
			Timestamp:  time.Now(),
		}
		if err := s.Emotions().Append(ctx, rec); err != nil {
			t.Fatalf("could not append emotion record: %v", err)
		}
	}

	history, err := s.Emotions().History(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("could not load emotion history: %v", err)
	}
	if len(history) != store.MaxEmotionRecords {
		t.Fatalf("expected %d records, got %d", store.MaxEmotionRecords, len(history))
	}
	if history[0].ID != fmt.Sprintf("emo-%d", store.MaxEmotionRecords+2) {
		t.Errorf("expected newest record first, got %q", history[0].ID)
	}
}

func TestErrorInjection(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	boom := errors.New("boom")
	s.users.CreateError = boom
	if err := s.Users().Create(ctx, &store.User{ID: "u1"}); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}

	s.logs.ListError = boom
	if _, err := s.Logs().List(ctx, 10); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
}
