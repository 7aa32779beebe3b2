package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"facegreeter/internal/recognition"
)

// RecognitionHandler controls the polling loop and streams its events.
type RecognitionHandler struct {
	baseCtx     context.Context // server lifetime, the loop outlives requests
	engine      *recognition.Engine
	broadcaster *recognition.Broadcaster
}

func NewRecognitionHandler(baseCtx context.Context, engine *recognition.Engine, broadcaster *recognition.Broadcaster) *RecognitionHandler {
	return &RecognitionHandler{baseCtx: baseCtx, engine: engine, broadcaster: broadcaster}
}

// Start begins the recognition polling loop.
func (h *RecognitionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.engine.Start(h.baseCtx)
	respondJSON(w, http.StatusOK, map[string]any{"running": true})
}

// Stop halts the recognition polling loop.
func (h *RecognitionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.engine.Stop()
	respondJSON(w, http.StatusOK, map[string]any{"running": false})
}

// RecognizeOnce runs a single recognition pass over a supplied frame.
func (h *RecognitionHandler) RecognizeOnce(w http.ResponseWriter, r *http.Request) {
	frame := readFrame(w, r)
	if frame == nil {
		return
	}
	match, err := h.engine.Recognize(r.Context(), frame)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "recognition failed")
		return
	}
	respondJSON(w, http.StatusOK, match)
}

// Events streams recognition lifecycle events over SSE until the client
// disconnects.
func (h *RecognitionHandler) Events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventCh := h.broadcaster.AddListener()
	defer h.broadcaster.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", map[string]any{"running": h.engine.Running()})

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
