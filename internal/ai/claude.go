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
)

const (
	defaultClaudeURL   = "https://api.anthropic.com"
	defaultClaudeModel = "claude-3-5-haiku-latest"
	claudeAPIVersion   = "2023-06-01"
	claudeMaxTokens    = 1024
)

// ClaudeProvider implements Provider against the Anthropic Messages API.
type ClaudeProvider struct {
	baseURL     string
	apiKey      string
	model       string
	client      *http.Client
	usage       Usage
	inputPrice  float64 // per 1M tokens
	outputPrice float64 // per 1M tokens
}

func NewClaudeProvider(apiKey, model string, pricing RequestPricing) *ClaudeProvider {
	if model == "" {
		model = defaultClaudeModel
	}
	return &ClaudeProvider{
		baseURL:     defaultClaudeURL,
		apiKey:      apiKey,
		model:       model,
		client:      &http.Client{},
		inputPrice:  pricing.Input,
		outputPrice: pricing.Output,
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (p *ClaudeProvider) SetBaseURL(url string) {
	p.baseURL = strings.TrimSuffix(url, "/")
}

func (p *ClaudeProvider) Name() string {
	return p.model
}

func (p *ClaudeProvider) GetUsage() *Usage {
	return &p.usage
}

func (p *ClaudeProvider) ResetUsage() {
	p.usage = Usage{}
}

func (p *ClaudeProvider) trackUsage(inputTokens, outputTokens int) {
	p.usage.InputTokens += inputTokens
	p.usage.OutputTokens += outputTokens
	p.usage.TotalCost += float64(inputTokens) / 1_000_000 * p.inputPrice
	p.usage.TotalCost += float64(outputTokens) / 1_000_000 * p.outputPrice
}

// claudeRequest represents a request to the Anthropic Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type   string             `json:"type"` // "text" or "image"
	Text   string             `json:"text,omitempty"`
	Source *claudeImageSource `json:"source,omitempty"`
}

type claudeImageSource struct {
	Type      string `json:"type"` // always "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// claudeResponse represents a response from the Anthropic Messages API.
type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func claudeTextMessage(role, text string) claudeMessage {
	return claudeMessage{
		Role:    role,
		Content: []claudeContent{{Type: "text", Text: text}},
	}
}

func claudeImageMessage(text string, jpegData []byte) claudeMessage {
	return claudeMessage{
		Role: "user",
		Content: []claudeContent{
			{Type: "text", Text: text},
			{Type: "image", Source: &claudeImageSource{
				Type:      "base64",
				MediaType: "image/jpeg",
				Data:      base64.StdEncoding.EncodeToString(jpegData),
			}},
		},
	}
}

func (p *ClaudeProvider) sendRequest(ctx context.Context, system string, messages []claudeMessage) (string, error) {
	reqBody := claudeRequest{
		Model:     p.model,
		MaxTokens: claudeMaxTokens,
		System:    system,
		Messages:  messages,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", claudeAPIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var claudeResp claudeResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	p.trackUsage(claudeResp.Usage.InputTokens, claudeResp.Usage.OutputTokens)

	var text strings.Builder
	for _, block := range claudeResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("no response from Claude")
	}
	return text.String(), nil
}

// generateJSON sends a prompt plus frame and unmarshals the JSON reply into
// out, feeding parse errors back to the model for up to maxRetries attempts.
func (p *ClaudeProvider) generateJSON(ctx context.Context, systemPrompt string, frame []byte, out any) error {
	const maxRetries = 5

	resized, err := ResizeFrame(frame, frameMaxSize)
	if err != nil {
		return fmt.Errorf("failed to resize frame: %w", err)
	}

	messages := []claudeMessage{claudeImageMessage("Analyze this camera frame.", resized)}

	var lastError error
	var lastResponse string

	for range maxRetries {
		content, err := p.sendRequest(ctx, systemPrompt, messages)
		if err != nil {
			return fmt.Errorf("claude API error: %w", err)
		}
		lastResponse = content

		jsonContent := extractJSON(content)
		if err := json.Unmarshal([]byte(jsonContent), out); err != nil {
			lastError = err

			// Add assistant response and error feedback for retry
			messages = append(messages,
				claudeTextMessage("assistant", content),
				claudeTextMessage("user", jsonRetryFeedback(err)),
			)
			continue
		}

		return nil
	}

	return fmt.Errorf("failed to parse JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}

func (p *ClaudeProvider) DetectFaces(ctx context.Context, frame []byte) (*Detection, error) {
	var detection Detection
	if err := p.generateJSON(ctx, buildDetectFacesPrompt(), frame, &detection); err != nil {
		return nil, err
	}
	detection.Count = len(detection.Faces)
	return &detection, nil
}

func (p *ClaudeProvider) DescribeFace(ctx context.Context, frame []byte) (string, error) {
	resized, err := ResizeFrame(frame, frameMaxSize)
	if err != nil {
		return "", fmt.Errorf("failed to resize frame: %w", err)
	}

	messages := []claudeMessage{claudeImageMessage("Describe this face for enrollment.", resized)}
	content, err := p.sendRequest(ctx, buildDescribeFacePrompt(), messages)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}
	return content, nil
}

func (p *ClaudeProvider) RecognizeUser(ctx context.Context, frame []byte, candidates []Candidate) (*Match, error) {
	var match Match
	if err := p.generateJSON(ctx, buildRecognizePrompt(candidates), frame, &match); err != nil {
		return nil, err
	}
	return validateMatch(&match, candidates), nil
}

func (p *ClaudeProvider) AnalyzeEmotion(ctx context.Context, frame []byte) (*EmotionResult, error) {
	var result EmotionResult
	if err := p.generateJSON(ctx, buildEmotionPrompt(), frame, &result); err != nil {
		return nil, err
	}
	result.Emotion = normalizeEmotion(result.Emotion)
	return &result, nil
}

func (p *ClaudeProvider) CheckLiveness(ctx context.Context, frame []byte) (*SecurityResult, error) {
	var result SecurityResult
	if err := p.generateJSON(ctx, buildLivenessPrompt(), frame, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *ClaudeProvider) Chat(ctx context.Context, persona string, history []ChatTurn, message string) (string, error) {
	var messages []claudeMessage
	for _, turn := range history {
		role := "user"
		if turn.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, claudeTextMessage(role, turn.Content))
	}
	messages = append(messages, claudeTextMessage("user", message))

	content, err := p.sendRequest(ctx, buildChatSystemPrompt(persona), messages)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}
	return strings.TrimSpace(content), nil
}
