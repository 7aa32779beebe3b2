package recognition

import (
	"context"
	"errors"
	"testing"

	"facegreeter/internal/ai"
)

// fakeProvider implements ai.Provider with scriptable results.
type fakeProvider struct {
	name string

	detection *ai.Detection
	match     *ai.Match
	emotion   *ai.EmotionResult
	security  *ai.SecurityResult
	reply     string
	err       error

	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) DetectFaces(ctx context.Context, frame []byte) (*ai.Detection, error) {
	f.calls++
	return f.detection, f.err
}

func (f *fakeProvider) DescribeFace(ctx context.Context, frame []byte) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeProvider) RecognizeUser(ctx context.Context, frame []byte, candidates []ai.Candidate) (*ai.Match, error) {
	f.calls++
	return f.match, f.err
}

func (f *fakeProvider) AnalyzeEmotion(ctx context.Context, frame []byte) (*ai.EmotionResult, error) {
	f.calls++
	return f.emotion, f.err
}

func (f *fakeProvider) CheckLiveness(ctx context.Context, frame []byte) (*ai.SecurityResult, error) {
	f.calls++
	return f.security, f.err
}

func (f *fakeProvider) Chat(ctx context.Context, persona string, history []ai.ChatTurn, message string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeProvider) GetUsage() *ai.Usage { return &ai.Usage{} }
func (f *fakeProvider) ResetUsage()         {}

// unreachableProvider is skipped by the chain without an attempt.
type unreachableProvider struct {
	fakeProvider
}

func (u *unreachableProvider) Reachable(ctx context.Context) bool { return false }

func TestChainFirstSuccessWins(t *testing.T) {
	first := &fakeProvider{
		name:  "gemini",
		match: &ai.Match{Matched: true, UserID: "u1", Confidence: 0.9},
	}
	second := &fakeProvider{name: "claude"}
	chain := NewChain(first, second)

	match, provider := chain.RecognizeUser(context.Background(), []byte("frame"), nil)
	if !match.Matched || match.UserID != "u1" {
		t.Errorf("expected match for u1, got %+v", match)
	}
	if provider != "gemini" {
		t.Errorf("expected provider gemini, got %q", provider)
	}
	if second.calls != 0 {
		t.Errorf("second provider should not have been called, got %d calls", second.calls)
	}
}

func TestChainFallsThroughOnError(t *testing.T) {
	first := &fakeProvider{name: "gemini", err: errors.New("rate limited")}
	second := &fakeProvider{name: "claude", err: ai.ErrUnsupported}
	third := &fakeProvider{
		name:  "ollama",
		match: &ai.Match{Matched: false, Confidence: 0.2},
	}
	chain := NewChain(first, second, third)

	match, provider := chain.RecognizeUser(context.Background(), []byte("frame"), nil)
	if match.Matched {
		t.Errorf("expected no match, got %+v", match)
	}
	if provider != "ollama" {
		t.Errorf("expected provider ollama, got %q", provider)
	}
	if first.calls != 1 || second.calls != 1 || third.calls != 1 {
		t.Errorf("expected each provider tried once, got %d/%d/%d", first.calls, second.calls, third.calls)
	}
}

func TestChainSkipsUnreachableProviders(t *testing.T) {
	down := &unreachableProvider{fakeProvider{name: "ollama"}}
	up := &fakeProvider{name: "vision", detection: &ai.Detection{Count: 1, Faces: []ai.FaceBox{{Width: 10, Height: 10}}}}
	chain := NewChain(down, up)

	detection, err := chain.DetectFaces(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("expected detection, got error: %v", err)
	}
	if detection.Count != 1 {
		t.Errorf("expected 1 face, got %d", detection.Count)
	}
	if down.calls != 0 {
		t.Errorf("unreachable provider should be skipped, got %d calls", down.calls)
	}
}

func TestChainNeutralDefaults(t *testing.T) {
	failing := &fakeProvider{name: "gemini", err: errors.New("down")}
	chain := NewChain(failing)
	ctx := context.Background()
	frame := []byte("frame")

	match, provider := chain.RecognizeUser(ctx, frame, nil)
	if match.Matched || provider != "" {
		t.Errorf("expected neutral no-match, got %+v from %q", match, provider)
	}

	emotion, _ := chain.AnalyzeEmotion(ctx, frame)
	if emotion.Emotion != "neutral" || emotion.Confidence != 0 {
		t.Errorf("expected neutral emotion, got %+v", emotion)
	}

	security, _ := chain.CheckLiveness(ctx, frame)
	if security.Live {
		t.Errorf("expected failed security check, got %+v", security)
	}

	reply, _ := chain.Chat(ctx, "", nil, "hello")
	if reply != cannedChatReply {
		t.Errorf("expected canned reply, got %q", reply)
	}

	if _, err := chain.DetectFaces(ctx, frame); err == nil {
		t.Error("expected error when no provider can detect faces")
	}
	if _, err := chain.DescribeFace(ctx, frame); err == nil {
		t.Error("expected error when no provider can describe the face")
	}
}

func TestChainEmptyChain(t *testing.T) {
	chain := NewChain()

	match, _ := chain.RecognizeUser(context.Background(), []byte("frame"), nil)
	if match.Matched {
		t.Errorf("expected no match from empty chain, got %+v", match)
	}
}
