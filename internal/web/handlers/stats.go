package handlers

import (
	"net/http"

	"facegreeter/internal/recognition"
	"facegreeter/internal/store"
)

// StatsHandler aggregates usage numbers for the dashboard.
type StatsHandler struct {
	store store.Store
	chain *recognition.Chain
}

func NewStatsHandler(st store.Store, chain *recognition.Chain) *StatsHandler {
	return &StatsHandler{store: st, chain: chain}
}

type providerUsage struct {
	Provider     string  `json:"provider"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Get returns user counts, interaction totals, and per-provider token usage.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.Users().List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not list users")
		return
	}

	interactions := 0
	for _, u := range users {
		interactions += u.InteractionCount
	}

	usage := make([]providerUsage, 0, len(h.chain.Providers()))
	totalCost := 0.0
	for _, p := range h.chain.Providers() {
		u := p.GetUsage()
		usage = append(usage, providerUsage{
			Provider:     p.Name(),
			InputTokens:  u.InputTokens,
			OutputTokens: u.OutputTokens,
			CostUSD:      u.TotalCost,
		})
		totalCost += u.TotalCost
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_count":     len(users),
		"interactions":   interactions,
		"provider_usage": usage,
		"total_cost_usd": totalCost,
	})
}
