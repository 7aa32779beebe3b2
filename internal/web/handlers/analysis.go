package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"facegreeter/internal/ai"
	"facegreeter/internal/recognition"
	"facegreeter/internal/store"
)

// AnalysisHandler serves per-frame inference: face boxes, emotion, liveness.
type AnalysisHandler struct {
	store store.Store
	chain *recognition.Chain
}

func NewAnalysisHandler(st store.Store, chain *recognition.Chain) *AnalysisHandler {
	return &AnalysisHandler{store: st, chain: chain}
}

// Detect returns face bounding boxes for the UI overlay.
func (h *AnalysisHandler) Detect(w http.ResponseWriter, r *http.Request) {
	frame := readFrame(w, r)
	if frame == nil {
		return
	}
	detection, err := h.chain.DetectFaces(r.Context(), frame)
	if err != nil {
		// Detection has no useful neutral default; the overlay just stays empty.
		respondJSON(w, http.StatusOK, &ai.Detection{Faces: []ai.FaceBox{}, Count: 0})
		return
	}
	respondJSON(w, http.StatusOK, detection)
}

type emotionRequest struct {
	Image  string `json:"image"`
	UserID string `json:"user_id,omitempty"` // when set, the result is appended to the user's history
}

// Emotion infers the dominant facial emotion and optionally records it.
func (h *AnalysisHandler) Emotion(w http.ResponseWriter, r *http.Request) {
	var req emotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Image == "" {
		respondError(w, http.StatusBadRequest, "missing image")
		return
	}
	frame, err := ai.DecodeFrame(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not decode image")
		return
	}

	result, provider := h.chain.AnalyzeEmotion(r.Context(), frame)

	if req.UserID != "" && provider != "" {
		record := &store.EmotionRecord{
			ID:         uuid.New().String(),
			UserID:     req.UserID,
			Emotion:    result.Emotion,
			Confidence: result.Confidence,
			Timestamp:  time.Now(),
		}
		if err := h.store.Emotions().Append(r.Context(), record); err != nil {
			log.Printf("could not record emotion for %s: %v", sanitizeForLog(req.UserID), err)
		}
	}

	respondJSON(w, http.StatusOK, result)
}

// Liveness runs the anti-spoofing check on a supplied frame.
func (h *AnalysisHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	frame := readFrame(w, r)
	if frame == nil {
		return
	}
	result, _ := h.chain.CheckLiveness(r.Context(), frame)
	respondJSON(w, http.StatusOK, result)
}
