package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

type GeminiProvider struct {
	client      *genai.Client
	usage       Usage
	inputPrice  float64 // per 1M tokens
	outputPrice float64 // per 1M tokens
}

func NewGeminiProvider(ctx context.Context, apiKey string, pricing RequestPricing) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		inputPrice:  pricing.Input,
		outputPrice: pricing.Output,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return geminiModel
}

func (p *GeminiProvider) GetUsage() *Usage {
	return &p.usage
}

func (p *GeminiProvider) ResetUsage() {
	p.usage = Usage{}
}

func (p *GeminiProvider) trackUsage(inputTokens, outputTokens int32) {
	p.usage.InputTokens += int(inputTokens)
	p.usage.OutputTokens += int(outputTokens)
	p.usage.TotalCost += float64(inputTokens) / 1_000_000 * p.inputPrice
	p.usage.TotalCost += float64(outputTokens) / 1_000_000 * p.outputPrice
}

// generateJSON sends a prompt plus frame and unmarshals the JSON reply into
// out, feeding parse errors back to the model for up to maxRetries attempts.
func (p *GeminiProvider) generateJSON(ctx context.Context, systemPrompt string, frame []byte, out any) error {
	const maxRetries = 5

	resized, err := ResizeFrame(frame, frameMaxSize)
	if err != nil {
		return fmt.Errorf("failed to resize frame: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: systemPrompt},
				{InlineData: &genai.Blob{Data: resized, MIMEType: "image/jpeg"}},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		result, err := p.client.Models.GenerateContent(ctx, geminiModel, contents, config)
		if err != nil {
			return fmt.Errorf("gemini API error: %w", err)
		}

		if result.UsageMetadata != nil {
			p.trackUsage(result.UsageMetadata.PromptTokenCount, result.UsageMetadata.CandidatesTokenCount)
		}

		content := result.Text()
		if content == "" {
			return errors.New("no response from Gemini")
		}
		lastResponse = content

		if err := json.Unmarshal([]byte(content), out); err != nil {
			lastError = err

			// Add model response and error feedback to contents for retry
			contents = append(contents,
				&genai.Content{
					Role:  "model",
					Parts: []*genai.Part{{Text: content}},
				},
				&genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: jsonRetryFeedback(err)}},
				},
			)
			continue
		}

		return nil
	}

	return fmt.Errorf("failed to parse JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}

func (p *GeminiProvider) DetectFaces(ctx context.Context, frame []byte) (*Detection, error) {
	var detection Detection
	if err := p.generateJSON(ctx, buildDetectFacesPrompt(), frame, &detection); err != nil {
		return nil, err
	}
	detection.Count = len(detection.Faces)
	return &detection, nil
}

func (p *GeminiProvider) DescribeFace(ctx context.Context, frame []byte) (string, error) {
	resized, err := ResizeFrame(frame, frameMaxSize)
	if err != nil {
		return "", fmt.Errorf("failed to resize frame: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildDescribeFacePrompt()},
				{InlineData: &genai.Blob{Data: resized, MIMEType: "image/jpeg"}},
			},
		},
	}

	result, err := p.client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	if result.UsageMetadata != nil {
		p.trackUsage(result.UsageMetadata.PromptTokenCount, result.UsageMetadata.CandidatesTokenCount)
	}

	content := result.Text()
	if content == "" {
		return "", errors.New("no response from Gemini")
	}
	return content, nil
}

func (p *GeminiProvider) RecognizeUser(ctx context.Context, frame []byte, candidates []Candidate) (*Match, error) {
	var match Match
	if err := p.generateJSON(ctx, buildRecognizePrompt(candidates), frame, &match); err != nil {
		return nil, err
	}
	return validateMatch(&match, candidates), nil
}

func (p *GeminiProvider) AnalyzeEmotion(ctx context.Context, frame []byte) (*EmotionResult, error) {
	var result EmotionResult
	if err := p.generateJSON(ctx, buildEmotionPrompt(), frame, &result); err != nil {
		return nil, err
	}
	result.Emotion = normalizeEmotion(result.Emotion)
	return &result, nil
}

func (p *GeminiProvider) CheckLiveness(ctx context.Context, frame []byte) (*SecurityResult, error) {
	var result SecurityResult
	if err := p.generateJSON(ctx, buildLivenessPrompt(), frame, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *GeminiProvider) Chat(ctx context.Context, persona string, history []ChatTurn, message string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildChatSystemPrompt(persona)}},
		},
		{
			Role:  "model",
			Parts: []*genai.Part{{Text: "Understood."}},
		},
	}
	for _, turn := range history {
		role := "user"
		if turn.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: message}},
	})

	result, err := p.client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	if result.UsageMetadata != nil {
		p.trackUsage(result.UsageMetadata.PromptTokenCount, result.UsageMetadata.CandidatesTokenCount)
	}

	content := result.Text()
	if content == "" {
		return "", errors.New("no response from Gemini")
	}
	return content, nil
}
