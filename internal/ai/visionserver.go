package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"facegreeter/internal/visiond"
)

// faceDetectionThreshold is the YOLO confidence cutoff for face boxes.
const faceDetectionThreshold = 0.5

// VisionServerProvider adapts the local YOLO/Moondream vision server to the
// Provider interface. It is the last link of the fallback chain and cannot
// serve operations that need the enrolled-user descriptions or a text-only
// conversation, so those return ErrUnsupported and the chain's neutral
// defaults apply.
type VisionServerProvider struct {
	client *visiond.Client
	usage  Usage

	// Reachability cache, same TTL as the Ollama probe.
	reachMu      sync.Mutex
	reachable    bool
	reachChecked time.Time
}

func NewVisionServerProvider(client *visiond.Client) *VisionServerProvider {
	return &VisionServerProvider{client: client}
}

func (p *VisionServerProvider) Name() string {
	return "vision-server"
}

func (p *VisionServerProvider) GetUsage() *Usage {
	return &p.usage
}

func (p *VisionServerProvider) ResetUsage() {
	p.usage = Usage{}
}

// Reachable reports whether the vision server answers its health endpoint.
// The result is cached for reachabilityTTL.
func (p *VisionServerProvider) Reachable(ctx context.Context) bool {
	p.reachMu.Lock()
	defer p.reachMu.Unlock()

	if time.Since(p.reachChecked) < reachabilityTTL {
		return p.reachable
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	health, err := p.client.Health(probeCtx)
	p.reachable = err == nil && health.Status == "ok"
	p.reachChecked = time.Now()
	return p.reachable
}

func (p *VisionServerProvider) DetectFaces(ctx context.Context, frame []byte) (*Detection, error) {
	resized, err := ResizeFrame(frame, frameMaxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize frame: %w", err)
	}

	resp, err := p.client.DetectFaces(ctx, resized, faceDetectionThreshold)
	if err != nil {
		return nil, fmt.Errorf("vision server error: %w", err)
	}

	detection := &Detection{Faces: make([]FaceBox, 0, len(resp.Faces))}
	for _, f := range resp.Faces {
		detection.Faces = append(detection.Faces, FaceBox{
			X:          f.BBox[0],
			Y:          f.BBox[1],
			Width:      f.BBox[2],
			Height:     f.BBox[3],
			Confidence: f.Confidence,
		})
	}
	detection.Count = len(detection.Faces)
	return detection, nil
}

func (p *VisionServerProvider) DescribeFace(ctx context.Context, frame []byte) (string, error) {
	resized, err := ResizeFrame(frame, frameMaxSize)
	if err != nil {
		return "", fmt.Errorf("failed to resize frame: %w", err)
	}

	answer, err := p.client.Analyze(ctx, resized, buildDescribeFacePrompt())
	if err != nil {
		return "", fmt.Errorf("vision server error: %w", err)
	}
	if answer == "" {
		return "", fmt.Errorf("empty description from vision server")
	}
	return answer, nil
}

// RecognizeUser is unsupported: Moondream cannot reliably be steered through
// the candidate-comparison contract. The chain falls through.
func (p *VisionServerProvider) RecognizeUser(ctx context.Context, frame []byte, candidates []Candidate) (*Match, error) {
	return nil, ErrUnsupported
}

func (p *VisionServerProvider) AnalyzeEmotion(ctx context.Context, frame []byte) (*EmotionResult, error) {
	resized, err := ResizeFrame(frame, frameMaxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize frame: %w", err)
	}

	answer, err := p.client.Analyze(ctx, resized,
		"In one word, which emotion does the face in this image show: happy, sad, angry, surprised, fearful, disgusted, or neutral?")
	if err != nil {
		return nil, fmt.Errorf("vision server error: %w", err)
	}

	// Moondream answers in prose; take the first recognizable label.
	label := "neutral"
	for _, word := range strings.Fields(strings.ToLower(answer)) {
		word = strings.Trim(word, ".,!?\"'")
		if normalized := normalizeEmotion(word); normalized != "neutral" || word == "neutral" {
			label = normalized
			break
		}
	}

	return &EmotionResult{Emotion: label, Confidence: 0.5}, nil
}

// CheckLiveness is unsupported: the local stack has no anti-spoof model.
func (p *VisionServerProvider) CheckLiveness(ctx context.Context, frame []byte) (*SecurityResult, error) {
	return nil, ErrUnsupported
}

// Chat is unsupported: the vision server only answers questions about images.
func (p *VisionServerProvider) Chat(ctx context.Context, persona string, history []ChatTurn, message string) (string, error) {
	return "", ErrUnsupported
}
