package ai

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by providers for operations they cannot serve.
// The fallback chain skips the provider and moves on to the next one.
var ErrUnsupported = errors.New("operation not supported by this provider")

// Candidate is a known user offered to the model for recognition.
// FaceDescription is free text produced by a model at enrollment,
// not an embedding.
type Candidate struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	FaceDescription string `json:"face_description"`
}

// Provider defines the interface for AI inference backends.
type Provider interface {
	Name() string

	// DetectFaces returns bounding boxes for faces in the frame.
	DetectFaces(ctx context.Context, frame []byte) (*Detection, error)

	// DescribeFace produces the free-text face description stored at enrollment.
	DescribeFace(ctx context.Context, frame []byte) (string, error)

	// RecognizeUser asks the model to compare the frame against candidate
	// descriptions and pick a match, or report no match.
	RecognizeUser(ctx context.Context, frame []byte, candidates []Candidate) (*Match, error)

	// AnalyzeEmotion infers the dominant facial emotion in the frame.
	AnalyzeEmotion(ctx context.Context, frame []byte) (*EmotionResult, error)

	// CheckLiveness looks for spoofing indicators (photo of a photo, screen replay).
	CheckLiveness(ctx context.Context, frame []byte) (*SecurityResult, error)

	// Chat generates an assistant reply given the persona and prior turns.
	Chat(ctx context.Context, persona string, history []ChatTurn, message string) (string, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// RequestPricing holds input/output prices per 1M tokens.
type RequestPricing struct {
	Input  float64
	Output float64
}

// FaceBox is a detected face bounding box in frame pixel coordinates.
type FaceBox struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Detection contains the faces found in a single frame.
type Detection struct {
	Faces []FaceBox `json:"faces"`
	Count int       `json:"count"`
}

// Match is the model's recognition verdict for a frame.
type Match struct {
	// Matched reports whether the model picked a candidate.
	Matched bool `json:"matched"`
	// UserID is the candidate ID on a match, empty otherwise.
	UserID string `json:"user_id,omitempty"`
	// Confidence score 0-1 for the match.
	Confidence float64 `json:"confidence"`
	// Greeting is a short personalized greeting line for the matched user.
	Greeting string `json:"greeting,omitempty"`
	// Reasoning explains what features led to the verdict.
	Reasoning string `json:"reasoning,omitempty"`
}

// EmotionResult is the inferred dominant emotion for a frame.
type EmotionResult struct {
	// Emotion is one of: happy, sad, angry, surprised, fearful, disgusted, neutral.
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Emotions lists the labels models are constrained to.
var Emotions = []string{"happy", "sad", "angry", "surprised", "fearful", "disgusted", "neutral"}

// SecurityResult is the liveness/anti-spoof verdict for a frame.
type SecurityResult struct {
	Live            bool     `json:"live"`
	Confidence      float64  `json:"confidence"`
	SpoofIndicators []string `json:"spoof_indicators,omitempty"`
}

// ChatTurn is a single prior message in a conversation.
type ChatTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// NoMatch is the neutral recognition result used when every provider fails.
func NoMatch() *Match {
	return &Match{Matched: false, Confidence: 0}
}

// NeutralEmotion is the neutral emotion result used when every provider fails.
func NeutralEmotion() *EmotionResult {
	return &EmotionResult{Emotion: "neutral", Confidence: 0}
}

// FailedSecurityCheck is the neutral liveness result used when every provider fails.
func FailedSecurityCheck() *SecurityResult {
	return &SecurityResult{Live: false, Confidence: 0, SpoofIndicators: []string{"check unavailable"}}
}
