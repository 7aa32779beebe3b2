package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultOllamaURL       = "http://localhost:11434"
	defaultOllamaModel     = "llama3.2-vision:11b"
	defaultOllamaChatModel = "gemma3:4b"

	// reachabilityTTL is how long a /api/tags probe result stays cached.
	reachabilityTTL = 30 * time.Second
)

type OllamaProvider struct {
	baseURL   string
	model     string // vision model
	chatModel string // text model for chat turns
	client    *http.Client
	usage     Usage

	// Short-lived reachability cache so the fallback chain doesn't probe
	// the local daemon on every tick.
	reachMu      sync.Mutex
	reachable    bool
	reachChecked time.Time
}

func NewOllamaProvider(baseURL, model, chatModel string) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	if chatModel == "" {
		chatModel = defaultOllamaChatModel
	}
	return &OllamaProvider{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		model:     model,
		chatModel: chatModel,
		client:    &http.Client{},
	}
}

func (p *OllamaProvider) Name() string {
	return p.model
}

func (p *OllamaProvider) GetUsage() *Usage {
	return &p.usage
}

func (p *OllamaProvider) ResetUsage() {
	p.usage = Usage{}
}

// Reachable reports whether the local Ollama daemon answers /api/tags.
// The result is cached for reachabilityTTL.
func (p *OllamaProvider) Reachable(ctx context.Context) bool {
	p.reachMu.Lock()
	defer p.reachMu.Unlock()

	if time.Since(p.reachChecked) < reachabilityTTL {
		return p.reachable
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		p.reachable = false
		p.reachChecked = time.Now()
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.reachable = false
		p.reachChecked = time.Now()
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	p.reachable = resp.StatusCode == http.StatusOK
	p.reachChecked = time.Now()
	return p.reachable
}

// ollamaRequest represents a request to the Ollama chat API
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // base64 encoded images
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// ollamaResponse represents a response from the Ollama chat API
type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

func (p *OllamaProvider) sendRequest(ctx context.Context, model, format string, messages []ollamaMessage) (*ollamaResponse, error) {
	reqBody := ollamaRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Format:   format,
		Options: ollamaOptions{
			NumPredict: 500,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &ollamaResp, nil
}

// generateJSON sends a prompt plus frame to the vision model and unmarshals
// the JSON reply into out, feeding parse errors back for up to maxRetries
// attempts. Local models wrap JSON in prose more often than cloud models, so
// responses go through the extractJSON brace matcher first.
func (p *OllamaProvider) generateJSON(ctx context.Context, systemPrompt string, frame []byte, out any) error {
	const maxRetries = 5

	if !p.Reachable(ctx) {
		return errors.New("ollama daemon is not reachable")
	}

	resized, err := ResizeFrame(frame, frameMaxSize)
	if err != nil {
		return fmt.Errorf("failed to resize frame: %w", err)
	}

	base64Image := base64.StdEncoding.EncodeToString(resized)
	messages := []ollamaMessage{
		{
			Role:    "system",
			Content: systemPrompt,
		},
		{
			Role:    "user",
			Content: "Analyze this camera frame.",
			Images:  []string{base64Image},
		},
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		resp, err := p.sendRequest(ctx, p.model, "json", messages)
		if err != nil {
			return fmt.Errorf("ollama API error: %w", err)
		}

		// Track usage (Ollama is free, but we track tokens for stats)
		p.usage.InputTokens += resp.PromptEvalCount
		p.usage.OutputTokens += resp.EvalCount

		content := resp.Message.Content
		lastResponse = content

		jsonContent := extractJSON(content)
		if err := json.Unmarshal([]byte(jsonContent), out); err != nil {
			lastError = err

			// Add assistant response and error feedback for retry
			messages = append(messages,
				ollamaMessage{
					Role:    "assistant",
					Content: content,
				},
				ollamaMessage{
					Role:    "user",
					Content: jsonRetryFeedback(err),
				},
			)
			continue
		}

		return nil
	}

	return fmt.Errorf("failed to parse JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}

func (p *OllamaProvider) DetectFaces(ctx context.Context, frame []byte) (*Detection, error) {
	var detection Detection
	if err := p.generateJSON(ctx, buildDetectFacesPrompt(), frame, &detection); err != nil {
		return nil, err
	}
	detection.Count = len(detection.Faces)
	return &detection, nil
}

func (p *OllamaProvider) DescribeFace(ctx context.Context, frame []byte) (string, error) {
	if !p.Reachable(ctx) {
		return "", errors.New("ollama daemon is not reachable")
	}

	resized, err := ResizeFrame(frame, frameMaxSize)
	if err != nil {
		return "", fmt.Errorf("failed to resize frame: %w", err)
	}

	messages := []ollamaMessage{
		{Role: "system", Content: buildDescribeFacePrompt()},
		{
			Role:    "user",
			Content: "Describe this face for enrollment.",
			Images:  []string{base64.StdEncoding.EncodeToString(resized)},
		},
	}

	resp, err := p.sendRequest(ctx, p.model, "", messages)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}

	p.usage.InputTokens += resp.PromptEvalCount
	p.usage.OutputTokens += resp.EvalCount

	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return "", errors.New("empty description from ollama")
	}
	return content, nil
}

func (p *OllamaProvider) RecognizeUser(ctx context.Context, frame []byte, candidates []Candidate) (*Match, error) {
	var match Match
	if err := p.generateJSON(ctx, buildRecognizePrompt(candidates), frame, &match); err != nil {
		return nil, err
	}
	return validateMatch(&match, candidates), nil
}

func (p *OllamaProvider) AnalyzeEmotion(ctx context.Context, frame []byte) (*EmotionResult, error) {
	var result EmotionResult
	if err := p.generateJSON(ctx, buildEmotionPrompt(), frame, &result); err != nil {
		return nil, err
	}
	result.Emotion = normalizeEmotion(result.Emotion)
	return &result, nil
}

func (p *OllamaProvider) CheckLiveness(ctx context.Context, frame []byte) (*SecurityResult, error) {
	var result SecurityResult
	if err := p.generateJSON(ctx, buildLivenessPrompt(), frame, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *OllamaProvider) Chat(ctx context.Context, persona string, history []ChatTurn, message string) (string, error) {
	if !p.Reachable(ctx) {
		return "", errors.New("ollama daemon is not reachable")
	}

	messages := []ollamaMessage{
		{Role: "system", Content: buildChatSystemPrompt(persona)},
	}
	for _, turn := range history {
		role := "user"
		if turn.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, ollamaMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: message})

	resp, err := p.sendRequest(ctx, p.chatModel, "", messages)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}

	p.usage.InputTokens += resp.PromptEvalCount
	p.usage.OutputTokens += resp.EvalCount

	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return "", errors.New("empty reply from ollama")
	}
	return content, nil
}
