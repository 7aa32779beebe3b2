package recognition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"facegreeter/internal/ai"
	"facegreeter/internal/store"
)

// Resolver is the subset of the chain the engine needs. Satisfied by
// *Chain; tests substitute a fake.
type Resolver interface {
	RecognizeUser(ctx context.Context, frame []byte, candidates []ai.Candidate) (*ai.Match, string)
}

// Engine runs the recognition polling loop: every interval it takes the
// latest camera frame and asks the provider chain to match it against the
// enrolled users. A match greets the user and returns the engine to standby.
type Engine struct {
	chain       Resolver
	store       store.Store
	frames      *FrameBuffer
	broadcaster *Broadcaster

	interval        time.Duration
	greetingTimeout time.Duration

	mu       sync.Mutex
	running  bool
	inFlight bool
	gen      uint64 // incremented on every Start; identifies the current run
	cancel   context.CancelFunc
}

// NewEngine creates a stopped engine.
func NewEngine(chain Resolver, st store.Store, frames *FrameBuffer, broadcaster *Broadcaster, interval, greetingTimeout time.Duration) *Engine {
	if interval <= 0 {
		interval = 4 * time.Second
	}
	if greetingTimeout <= 0 {
		greetingTimeout = 3500 * time.Millisecond
	}
	return &Engine{
		chain:           chain,
		store:           st,
		frames:          frames,
		broadcaster:     broadcaster,
		interval:        interval,
		greetingTimeout: greetingTimeout,
	}
}

// Running reports whether the polling loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Start launches the polling loop. Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.gen++
	gen := e.gen
	e.cancel = cancel
	e.mu.Unlock()

	e.broadcaster.Send(Event{Type: EventStarted})
	e.appendLog(ctx, store.LogInfo, "Recognition started", "")

	go e.loop(loopCtx, gen)
}

// Stop cancels the polling loop. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()
	e.stopRun(gen)
}

// stopRun stops the engine only when gen still identifies the current run.
// A loop draining from a previous run must not stop a restarted engine.
func (e *Engine) stopRun(gen uint64) {
	e.mu.Lock()
	if !e.running || e.gen != gen {
		e.mu.Unlock()
		return
	}
	// inFlight stays untouched: it is owned by the attempt that set it
	// and released by that attempt's cleanup. Clearing it here would let
	// a restarted loop overlap a still-executing attempt.
	e.running = false
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.broadcaster.Send(Event{Type: EventStopped})
}

func (e *Engine) loop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.stopRun(gen)
			return
		case <-ticker.C:
			e.broadcaster.Send(Event{Type: EventTick})
			if matched := e.tick(ctx, gen); matched {
				e.stopRun(gen)
				return
			}
		}
	}
}

// tick runs at most one recognition attempt. Returns true when a user was
// matched and the loop should stop.
func (e *Engine) tick(ctx context.Context, gen uint64) bool {
	e.mu.Lock()
	if !e.running || e.inFlight || e.gen != gen {
		e.mu.Unlock()
		return false
	}
	e.inFlight = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	match, err := e.Attempt(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, ErrNoFrame) {
			log.Printf("recognition attempt failed: %v", err)
			e.broadcaster.Send(Event{Type: EventError, Message: err.Error()})
		}
		return false
	}
	return match.Matched
}

// Attempt runs a single recognition pass over the latest frame. It is also
// called directly by the one-shot HTTP endpoint.
func (e *Engine) Attempt(ctx context.Context) (*ai.Match, error) {
	frame, err := e.frames.Latest()
	if err != nil {
		return nil, err
	}
	return e.Recognize(ctx, frame)
}

// Recognize matches a frame against all enrolled users and handles the
// greeting lifecycle on a match.
func (e *Engine) Recognize(ctx context.Context, frame []byte) (*ai.Match, error) {
	users, err := e.store.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load users: %w", err)
	}
	if len(users) == 0 {
		return ai.NoMatch(), nil
	}

	candidates := make([]ai.Candidate, 0, len(users))
	byID := make(map[string]store.User, len(users))
	for _, u := range users {
		candidates = append(candidates, ai.Candidate{
			ID:              u.ID,
			Name:            u.Name,
			FaceDescription: u.FaceDescription,
		})
		byID[u.ID] = u
	}

	e.broadcaster.Send(Event{Type: EventAttempt})
	match, provider := e.chain.RecognizeUser(ctx, frame, candidates)
	if !match.Matched {
		return match, nil
	}

	user, ok := byID[match.UserID]
	if !ok {
		// The chain already filters hallucinated IDs, but users can be
		// deleted while an attempt is in flight.
		return ai.NoMatch(), nil
	}

	now := time.Now()
	if err := e.store.Users().RecordInteraction(ctx, user.ID, now); err != nil {
		log.Printf("could not record interaction for %s: %v", user.ID, err)
	}
	e.appendLog(ctx, store.LogRecognition,
		fmt.Sprintf("Recognized %s", user.Name),
		fmt.Sprintf("provider=%s confidence=%.2f", provider, match.Confidence))

	greeting := match.Greeting
	if greeting == "" {
		greeting = fmt.Sprintf("Welcome back, %s!", user.Name)
	}
	e.broadcaster.Send(Event{
		Type:       EventGreeting,
		UserID:     user.ID,
		UserName:   user.Name,
		Greeting:   greeting,
		Confidence: match.Confidence,
		Provider:   provider,
	})
	time.AfterFunc(e.greetingTimeout, func() {
		e.broadcaster.Send(Event{Type: EventGreetingDismissed, UserID: user.ID})
	})

	return match, nil
}

func (e *Engine) appendLog(ctx context.Context, category store.LogCategory, message, detail string) {
	entry := &store.LogEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Category:  category,
		Message:   message,
		Detail:    detail,
	}
	if err := e.store.Logs().Append(ctx, entry); err != nil {
		log.Printf("could not append activity log entry: %v", err)
	}
}
