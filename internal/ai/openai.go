package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const openaiModel = openai.ChatModelGPT4_1Mini

type OpenAIProvider struct {
	client      *openai.Client
	usage       Usage
	inputPrice  float64 // per 1M tokens
	outputPrice float64 // per 1M tokens
}

func NewOpenAIProvider(apiKey string, pricing RequestPricing) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		client:      &client,
		inputPrice:  pricing.Input,
		outputPrice: pricing.Output,
	}
}

func (p *OpenAIProvider) Name() string {
	return openaiModel
}

func (p *OpenAIProvider) GetUsage() *Usage {
	return &p.usage
}

func (p *OpenAIProvider) ResetUsage() {
	p.usage = Usage{}
}

func (p *OpenAIProvider) trackUsage(inputTokens, outputTokens int64) {
	p.usage.InputTokens += int(inputTokens)
	p.usage.OutputTokens += int(outputTokens)
	p.usage.TotalCost += float64(inputTokens) / 1_000_000 * p.inputPrice
	p.usage.TotalCost += float64(outputTokens) / 1_000_000 * p.outputPrice
}

// frameMessages builds the system + user-with-image message pair shared by
// all vision operations.
func frameMessages(systemPrompt string, jpegData []byte) []openai.ChatCompletionMessageParamUnion {
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
	return []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(systemPrompt),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart("Analyze this camera frame."),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    imageURL,
							Detail: "low",
						}),
					},
				},
			},
		},
	}
}

// generateJSON sends a prompt plus frame and unmarshals the JSON reply into
// out, feeding parse errors back to the model for up to maxRetries attempts.
func (p *OpenAIProvider) generateJSON(ctx context.Context, systemPrompt string, frame []byte, out any) error {
	const maxRetries = 5

	resized, err := ResizeFrame(frame, frameMaxSize)
	if err != nil {
		return fmt.Errorf("failed to resize frame: %w", err)
	}

	messages := frameMessages(systemPrompt, resized)

	var lastError error
	var lastResponse string

	for range maxRetries {
		resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    openaiModel,
			Messages: messages,
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
			MaxTokens: openai.Int(500),
		})
		if err != nil {
			return fmt.Errorf("OpenAI API error: %w", err)
		}

		if len(resp.Choices) == 0 {
			return errors.New("no response from OpenAI")
		}

		if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
			p.trackUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		}

		content := resp.Choices[0].Message.Content
		lastResponse = content

		if err := json.Unmarshal([]byte(content), out); err != nil {
			lastError = err

			// Add assistant response and error feedback to messages for retry
			messages = append(messages,
				openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Content: openai.ChatCompletionAssistantMessageParamContentUnion{
							OfString: openai.String(content),
						},
					},
				},
				openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Content: openai.ChatCompletionUserMessageParamContentUnion{
							OfString: openai.String(jsonRetryFeedback(err)),
						},
					},
				},
			)
			continue
		}

		return nil
	}

	return fmt.Errorf("failed to parse JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}

func (p *OpenAIProvider) DetectFaces(ctx context.Context, frame []byte) (*Detection, error) {
	var detection Detection
	if err := p.generateJSON(ctx, buildDetectFacesPrompt(), frame, &detection); err != nil {
		return nil, err
	}
	detection.Count = len(detection.Faces)
	return &detection, nil
}

func (p *OpenAIProvider) DescribeFace(ctx context.Context, frame []byte) (string, error) {
	resized, err := ResizeFrame(frame, frameMaxSize)
	if err != nil {
		return "", fmt.Errorf("failed to resize frame: %w", err)
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openaiModel,
		Messages:  frameMessages(buildDescribeFacePrompt(), resized),
		MaxTokens: openai.Int(400),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		p.trackUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) RecognizeUser(ctx context.Context, frame []byte, candidates []Candidate) (*Match, error) {
	var match Match
	if err := p.generateJSON(ctx, buildRecognizePrompt(candidates), frame, &match); err != nil {
		return nil, err
	}
	return validateMatch(&match, candidates), nil
}

func (p *OpenAIProvider) AnalyzeEmotion(ctx context.Context, frame []byte) (*EmotionResult, error) {
	var result EmotionResult
	if err := p.generateJSON(ctx, buildEmotionPrompt(), frame, &result); err != nil {
		return nil, err
	}
	result.Emotion = normalizeEmotion(result.Emotion)
	return &result, nil
}

func (p *OpenAIProvider) CheckLiveness(ctx context.Context, frame []byte) (*SecurityResult, error) {
	var result SecurityResult
	if err := p.generateJSON(ctx, buildLivenessPrompt(), frame, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, persona string, history []ChatTurn, message string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(buildChatSystemPrompt(persona)),
				},
			},
		},
	}
	for _, turn := range history {
		if turn.Role == "assistant" {
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(turn.Content),
					},
				},
			})
			continue
		}
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(turn.Content),
				},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(message),
			},
		},
	})

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openaiModel,
		Messages:  messages,
		MaxTokens: openai.Int(300),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		p.trackUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
