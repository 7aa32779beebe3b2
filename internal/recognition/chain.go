package recognition

import (
	"context"
	"errors"
	"fmt"
	"log"

	"facegreeter/internal/ai"
)

// cannedChatReply is returned when no provider can answer a chat message.
const cannedChatReply = "Sorry, I cannot reach my language model right now. Please try again in a moment."

// Chain tries providers sequentially in priority order. A provider that
// returns an error or ai.ErrUnsupported advances the chain to the next one.
// Operations with a neutral default never return an error to the caller.
type Chain struct {
	providers []ai.Provider
}

// NewChain creates a chain over the given providers, tried in order.
func NewChain(providers ...ai.Provider) *Chain {
	return &Chain{providers: providers}
}

// Providers returns the chain members in priority order.
func (c *Chain) Providers() []ai.Provider {
	return c.providers
}

// reachable is implemented by providers with a cheap availability probe.
type reachable interface {
	Reachable(ctx context.Context) bool
}

// skip reports whether a provider should be passed over without an attempt.
func skip(ctx context.Context, p ai.Provider) bool {
	if r, ok := p.(reachable); ok && !r.Reachable(ctx) {
		return true
	}
	return false
}

// DetectFaces tries each provider until one returns a detection.
func (c *Chain) DetectFaces(ctx context.Context, frame []byte) (*ai.Detection, error) {
	for _, p := range c.providers {
		if skip(ctx, p) {
			continue
		}
		detection, err := p.DetectFaces(ctx, frame)
		if err != nil {
			logProviderError(p, "detect faces", err)
			continue
		}
		return detection, nil
	}
	return nil, fmt.Errorf("no provider could detect faces")
}

// DescribeFace tries each provider until one produces a description.
func (c *Chain) DescribeFace(ctx context.Context, frame []byte) (string, error) {
	for _, p := range c.providers {
		if skip(ctx, p) {
			continue
		}
		description, err := p.DescribeFace(ctx, frame)
		if err != nil {
			logProviderError(p, "describe face", err)
			continue
		}
		return description, nil
	}
	return "", fmt.Errorf("no provider could describe the face")
}

// RecognizeUser tries each provider; when every provider fails the result
// is a no-match, never an error.
func (c *Chain) RecognizeUser(ctx context.Context, frame []byte, candidates []ai.Candidate) (*ai.Match, string) {
	for _, p := range c.providers {
		if skip(ctx, p) {
			continue
		}
		match, err := p.RecognizeUser(ctx, frame, candidates)
		if err != nil {
			logProviderError(p, "recognize user", err)
			continue
		}
		return match, p.Name()
	}
	return ai.NoMatch(), ""
}

// AnalyzeEmotion tries each provider; falls back to a neutral emotion.
func (c *Chain) AnalyzeEmotion(ctx context.Context, frame []byte) (*ai.EmotionResult, string) {
	for _, p := range c.providers {
		if skip(ctx, p) {
			continue
		}
		result, err := p.AnalyzeEmotion(ctx, frame)
		if err != nil {
			logProviderError(p, "analyze emotion", err)
			continue
		}
		return result, p.Name()
	}
	return ai.NeutralEmotion(), ""
}

// CheckLiveness tries each provider; falls back to a failed check.
func (c *Chain) CheckLiveness(ctx context.Context, frame []byte) (*ai.SecurityResult, string) {
	for _, p := range c.providers {
		if skip(ctx, p) {
			continue
		}
		result, err := p.CheckLiveness(ctx, frame)
		if err != nil {
			logProviderError(p, "check liveness", err)
			continue
		}
		return result, p.Name()
	}
	return ai.FailedSecurityCheck(), ""
}

// Chat tries each provider; falls back to a canned apology.
func (c *Chain) Chat(ctx context.Context, persona string, history []ai.ChatTurn, message string) (string, string) {
	for _, p := range c.providers {
		if skip(ctx, p) {
			continue
		}
		reply, err := p.Chat(ctx, persona, history, message)
		if err != nil {
			logProviderError(p, "chat", err)
			continue
		}
		return reply, p.Name()
	}
	return cannedChatReply, ""
}

func logProviderError(p ai.Provider, op string, err error) {
	if errors.Is(err, ai.ErrUnsupported) {
		return
	}
	log.Printf("provider %s failed to %s: %v", p.Name(), op, err)
}
