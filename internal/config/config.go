package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

type Config struct {
	Gemini      GeminiConfig
	Claude      ClaudeConfig
	OpenAI      OpenAIConfig
	Ollama      OllamaConfig
	Vision      VisionConfig
	Database    DatabaseConfig
	Recognition RecognitionConfig
	Prices      PricesConfig
}

type GeminiConfig struct {
	APIKey string
}

type ClaudeConfig struct {
	APIKey string
	Model  string // defaults to claude-3-5-haiku-latest
}

type OpenAIConfig struct {
	Token string
}

type OllamaConfig struct {
	URL       string // defaults to http://localhost:11434
	Model     string // vision model, defaults to llama3.2-vision:11b
	ChatModel string // text model, defaults to gemma3:4b
}

type VisionConfig struct {
	URL string // local vision server (YOLO + Moondream), defaults to http://localhost:8000
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MariaDBDSN   string // alternative MariaDB DSN (user:pass@tcp(host:3306)/db)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type RecognitionConfig struct {
	Interval        time.Duration // polling interval (default 4s)
	GreetingTimeout time.Duration // greeting overlay auto-dismiss (default 3.5s)
	Persona         string        // assistant persona for chat prompts
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Input  float64 `yaml:"input"`  // USD per 1M input tokens
	Output float64 `yaml:"output"` // USD per 1M output tokens
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration reads an environment variable as a duration (e.g. "4s", "500ms").
// Returns the default value if the env var is unset, empty, or invalid.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(modelsYAML, &prices); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	return &Config{
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Claude: ClaudeConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  os.Getenv("CLAUDE_MODEL"),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Ollama: OllamaConfig{
			URL:       os.Getenv("OLLAMA_URL"),
			Model:     os.Getenv("OLLAMA_MODEL"),
			ChatModel: os.Getenv("OLLAMA_CHAT_MODEL"),
		},
		Vision: VisionConfig{
			URL: os.Getenv("VISION_SERVER_URL"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MariaDBDSN:   os.Getenv("MARIADB_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Recognition: RecognitionConfig{
			Interval:        envDuration("RECOGNITION_INTERVAL", 4*time.Second),
			GreetingTimeout: envDuration("GREETING_TIMEOUT", 3500*time.Millisecond),
			Persona:         os.Getenv("ASSISTANT_PERSONA"),
		},
		Prices: prices,
	}
}

// GetModelPricing returns pricing for a specific model.
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	// Zero pricing if model not found (local models are free)
	return ModelPricing{}
}
