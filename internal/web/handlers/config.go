package handlers

import (
	"net/http"

	"facegreeter/internal/config"
	"facegreeter/internal/recognition"
)

// ConfigHandler exposes the provider chain setup to the UI.
type ConfigHandler struct {
	cfg   *config.Config
	chain *recognition.Chain
}

func NewConfigHandler(cfg *config.Config, chain *recognition.Chain) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, chain: chain}
}

// Get returns the chain order and loop timing. API keys never leave the server.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	providers := make([]string, 0, len(h.chain.Providers()))
	for _, p := range h.chain.Providers() {
		providers = append(providers, p.Name())
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"providers":               providers,
		"recognition_interval_ms": h.cfg.Recognition.Interval.Milliseconds(),
		"greeting_timeout_ms":     h.cfg.Recognition.GreetingTimeout.Milliseconds(),
	})
}
