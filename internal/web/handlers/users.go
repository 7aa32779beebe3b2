package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"facegreeter/internal/ai"
	"facegreeter/internal/names"
	"facegreeter/internal/recognition"
	"facegreeter/internal/store"
)

// UsersHandler manages enrolled users.
type UsersHandler struct {
	store  store.Store
	chain  *recognition.Chain
	frames *recognition.FrameBuffer
}

func NewUsersHandler(st store.Store, chain *recognition.Chain, frames *recognition.FrameBuffer) *UsersHandler {
	return &UsersHandler{store: st, chain: chain, frames: frames}
}

// List returns all enrolled users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.Users().List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not list users")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

type enrollRequest struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"` // optional, falls back to the latest pushed frame
}

// Enroll creates a user from a camera frame: an AI provider describes the
// face in free text and the description becomes the recognition reference.
func (h *UsersHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	name := names.Clean(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing name")
		return
	}

	var frame []byte
	var err error
	if req.Image != "" {
		frame, err = ai.DecodeFrame(req.Image)
		if err != nil {
			respondError(w, http.StatusBadRequest, "could not decode image")
			return
		}
	} else {
		frame, err = h.frames.Latest()
		if err != nil {
			respondError(w, http.StatusBadRequest, "no camera frame available, supply an image")
			return
		}
	}

	// Reject duplicate names so recognition candidates stay unambiguous.
	existing, err := h.store.Users().List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not list users")
		return
	}
	for _, u := range existing {
		if names.Fold(u.Name) == names.Fold(name) {
			respondError(w, http.StatusConflict, fmt.Sprintf("user %q is already enrolled", u.Name))
			return
		}
	}

	description, err := h.chain.DescribeFace(r.Context(), frame)
	if err != nil {
		respondError(w, http.StatusBadGateway, "no provider could describe the face")
		return
	}

	now := time.Now()
	user := &store.User{
		ID:              uuid.New().String(),
		Name:            name,
		FaceDescription: description,
		RegisteredAt:    now,
		LastSeenAt:      now,
	}
	if err := h.store.Users().Create(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, "could not save user")
		return
	}
	h.appendLog(r, store.LogSuccess, fmt.Sprintf("Enrolled %s", sanitizeForLog(name)), "")

	respondJSON(w, http.StatusCreated, user)
}

// Get returns a single user.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename updates a user's display name.
func (h *UsersHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	name := names.Clean(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing name")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.Users().UpdateName(r.Context(), id, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "could not update user")
		return
	}
	user, err := h.store.Users().Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Delete removes a user and their history.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := h.store.Users().Delete(r.Context(), user.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "could not delete user")
		return
	}
	h.appendLog(r, store.LogInfo, fmt.Sprintf("Removed %s", sanitizeForLog(user.Name)), "")
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Emotions returns a user's capped emotion history, newest first.
func (h *UsersHandler) Emotions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookup(w, r)
	if !ok {
		return
	}
	history, err := h.store.Emotions().History(r.Context(), user.ID, store.MaxEmotionRecords)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load emotion history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"emotions": history})
}

// Messages returns a user's capped conversation history in chronological order.
func (h *UsersHandler) Messages(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookup(w, r)
	if !ok {
		return
	}
	history, err := h.store.Conversations().History(r.Context(), user.ID, store.MaxConversationMessages)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load conversation history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": history})
}

func (h *UsersHandler) lookup(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing user ID")
		return nil, false
	}
	user, err := h.store.Users().Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return nil, false
		}
		respondError(w, http.StatusInternalServerError, "could not load user")
		return nil, false
	}
	return user, true
}

func (h *UsersHandler) appendLog(r *http.Request, category store.LogCategory, message, detail string) {
	entry := &store.LogEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Category:  category,
		Message:   message,
		Detail:    detail,
	}
	if err := h.store.Logs().Append(r.Context(), entry); err != nil {
		log.Printf("could not append activity log entry: %v", err)
	}
}
