package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"facegreeter/internal/ai"
	"facegreeter/internal/recognition"
	"facegreeter/internal/store"
)

// ChatHandler serves the assistant conversation.
type ChatHandler struct {
	store   store.Store
	chain   *recognition.Chain
	persona string
}

func NewChatHandler(st store.Store, chain *recognition.Chain, persona string) *ChatHandler {
	return &ChatHandler{store: st, chain: chain, persona: persona}
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	Voice   bool   `json:"voice,omitempty"` // message came in via speech recognition
}

type chatResponse struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider,omitempty"`
}

// Send handles one chat turn: loads the user's history, asks the chain for
// a reply, and persists both turns.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "missing message")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "missing user ID")
		return
	}
	if _, err := h.store.Users().Get(r.Context(), req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "could not load user")
		return
	}

	messages, err := h.store.Conversations().History(r.Context(), req.UserID, store.MaxConversationMessages)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load conversation history")
		return
	}
	history := make([]ai.ChatTurn, 0, len(messages))
	for _, m := range messages {
		history = append(history, ai.ChatTurn{Role: m.Role, Content: m.Content})
	}

	reply, provider := h.chain.Chat(r.Context(), h.persona, history, req.Message)

	now := time.Now()
	turns := []*store.ConversationMessage{
		{ID: uuid.New().String(), UserID: req.UserID, Role: "user", Content: req.Message, Timestamp: now, Voice: req.Voice},
		{ID: uuid.New().String(), UserID: req.UserID, Role: "assistant", Content: reply, Timestamp: now},
	}
	for _, turn := range turns {
		if err := h.store.Conversations().Append(r.Context(), turn); err != nil {
			log.Printf("could not persist chat turn for %s: %v", sanitizeForLog(req.UserID), err)
		}
	}

	respondJSON(w, http.StatusOK, chatResponse{Reply: reply, Provider: provider})
}
