package handlers

import (
	"net/http"

	"facegreeter/internal/recognition"
)

// FramesHandler accepts camera frames pushed by the browser.
type FramesHandler struct {
	frames *recognition.FrameBuffer
}

func NewFramesHandler(frames *recognition.FrameBuffer) *FramesHandler {
	return &FramesHandler{frames: frames}
}

// Push stores the latest camera frame.
func (h *FramesHandler) Push(w http.ResponseWriter, r *http.Request) {
	frame := readFrame(w, r)
	if frame == nil {
		return
	}
	h.frames.Put(frame)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "stored"})
}
