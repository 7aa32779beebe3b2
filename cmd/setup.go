package cmd

import (
	"context"
	"fmt"

	"facegreeter/internal/ai"
	"facegreeter/internal/config"
	"facegreeter/internal/recognition"
	"facegreeter/internal/store"
	"facegreeter/internal/store/mariadb"
	"facegreeter/internal/store/memory"
	"facegreeter/internal/store/postgres"
	"facegreeter/internal/visiond"
)

const (
	defaultClaudeModel = "claude-3-5-haiku-latest"
	geminiModelName    = "gemini-2.5-flash"
	openaiModelName    = "gpt-4.1-mini"
)

func pricingFor(cfg *config.Config, model string) ai.RequestPricing {
	p := cfg.GetModelPricing(model)
	return ai.RequestPricing{Input: p.Input, Output: p.Output}
}

// buildChain assembles the provider fallback chain from the configuration.
// Providers without credentials are left out; the chain order is fixed:
// Gemini, Claude, OpenAI, Ollama, local vision server.
func buildChain(ctx context.Context, cfg *config.Config) (*recognition.Chain, error) {
	var providers []ai.Provider

	if cfg.Gemini.APIKey != "" {
		gemini, err := ai.NewGeminiProvider(ctx, cfg.Gemini.APIKey, pricingFor(cfg, geminiModelName))
		if err != nil {
			return nil, fmt.Errorf("creating Gemini provider: %w", err)
		}
		providers = append(providers, gemini)
	}

	if cfg.Claude.APIKey != "" {
		model := cfg.Claude.Model
		if model == "" {
			model = defaultClaudeModel
		}
		providers = append(providers, ai.NewClaudeProvider(cfg.Claude.APIKey, model, pricingFor(cfg, model)))
	}

	if cfg.OpenAI.Token != "" {
		providers = append(providers, ai.NewOpenAIProvider(cfg.OpenAI.Token, pricingFor(cfg, openaiModelName)))
	}

	// Ollama is always in the chain; the reachability probe skips it when
	// the daemon is down.
	providers = append(providers, ai.NewOllamaProvider(cfg.Ollama.URL, cfg.Ollama.Model, cfg.Ollama.ChatModel))

	if cfg.Vision.URL != "" {
		client, err := visiond.New(cfg.Vision.URL)
		if err != nil {
			return nil, fmt.Errorf("creating vision server client: %w", err)
		}
		providers = append(providers, ai.NewVisionServerProvider(client))
	}

	return recognition.NewChain(providers...), nil
}

// buildStore selects the storage backend: PostgreSQL when DATABASE_URL is
// set, MariaDB when MARIADB_DSN is set, in-memory otherwise.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, string, error) {
	if cfg.Database.URL != "" {
		s, err := postgres.NewStore(ctx, &cfg.Database)
		if err != nil {
			return nil, "", fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		return s, "postgres", nil
	}
	if cfg.Database.MariaDBDSN != "" {
		s, err := mariadb.NewStore(ctx, cfg.Database.MariaDBDSN)
		if err != nil {
			return nil, "", fmt.Errorf("connecting to MariaDB: %w", err)
		}
		return s, "mariadb", nil
	}
	return memory.NewStore(), "memory", nil
}
