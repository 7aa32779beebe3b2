package handlers

import (
	"context"
	"net/http"
	"time"

	"facegreeter/internal/recognition"
)

// HealthHandler reports server and provider status.
type HealthHandler struct {
	chain *recognition.Chain
}

func NewHealthHandler(chain *recognition.Chain) *HealthHandler {
	return &HealthHandler{chain: chain}
}

type providerStatus struct {
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
}

// Get handles the health check endpoint.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	providers := make([]providerStatus, 0, len(h.chain.Providers()))
	for _, p := range h.chain.Providers() {
		status := providerStatus{Name: p.Name(), Reachable: true}
		if probe, ok := p.(interface{ Reachable(context.Context) bool }); ok {
			status.Reachable = probe.Reachable(ctx)
		}
		providers = append(providers, status)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": providers,
	})
}
