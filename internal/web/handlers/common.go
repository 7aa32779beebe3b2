// Package handlers implements the HTTP API handlers.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"facegreeter/internal/ai"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// frameRequest is the common request shape for endpoints that take a camera
// frame: {"image": "<base64 or data URL>"}.
type frameRequest struct {
	Image string `json:"image"`
}

// readFrame decodes a frame from the request body. Returns nil and writes
// an error response when the body is unusable.
func readFrame(w http.ResponseWriter, r *http.Request) []byte {
	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return nil
	}
	if req.Image == "" {
		respondError(w, http.StatusBadRequest, "missing image")
		return nil
	}
	frame, err := ai.DecodeFrame(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not decode image")
		return nil
	}
	return frame
}
