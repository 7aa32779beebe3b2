package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"facegreeter/internal/ai"
	"facegreeter/internal/config"
	"facegreeter/internal/recognition"
	"facegreeter/internal/store"
	"facegreeter/internal/store/memory"
)

// scriptedProvider implements ai.Provider with fixed results for API tests.
type scriptedProvider struct {
	description string
	match       *ai.Match
	emotion     *ai.EmotionResult
	security    *ai.SecurityResult
	detection   *ai.Detection
	reply       string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) DetectFaces(ctx context.Context, frame []byte) (*ai.Detection, error) {
	if p.detection == nil {
		return nil, ai.ErrUnsupported
	}
	return p.detection, nil
}

func (p *scriptedProvider) DescribeFace(ctx context.Context, frame []byte) (string, error) {
	if p.description == "" {
		return "", ai.ErrUnsupported
	}
	return p.description, nil
}

func (p *scriptedProvider) RecognizeUser(ctx context.Context, frame []byte, candidates []ai.Candidate) (*ai.Match, error) {
	if p.match == nil {
		return nil, ai.ErrUnsupported
	}
	return p.match, nil
}

func (p *scriptedProvider) AnalyzeEmotion(ctx context.Context, frame []byte) (*ai.EmotionResult, error) {
	if p.emotion == nil {
		return nil, ai.ErrUnsupported
	}
	return p.emotion, nil
}

func (p *scriptedProvider) CheckLiveness(ctx context.Context, frame []byte) (*ai.SecurityResult, error) {
	if p.security == nil {
		return nil, ai.ErrUnsupported
	}
	return p.security, nil
}

func (p *scriptedProvider) Chat(ctx context.Context, persona string, history []ai.ChatTurn, message string) (string, error) {
	if p.reply == "" {
		return "", ai.ErrUnsupported
	}
	return p.reply, nil
}

func (p *scriptedProvider) GetUsage() *ai.Usage { return &ai.Usage{InputTokens: 10, OutputTokens: 5} }
func (p *scriptedProvider) ResetUsage()         {}

func testImage() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("not a real jpeg"))
}

func setupServer(t *testing.T, provider ai.Provider) (*Server, *memory.Store) {
	t.Helper()
	cfg := &config.Config{
		Recognition: config.RecognitionConfig{
			Interval:        4 * time.Second,
			GreetingTimeout: 3500 * time.Millisecond,
		},
	}
	st := memory.NewStore()
	chain := recognition.NewChain(provider)
	frames := recognition.NewFrameBuffer()
	broadcaster := recognition.NewBroadcaster()
	engine := recognition.NewEngine(chain, st, frames, broadcaster, cfg.Recognition.Interval, cfg.Recognition.GreetingTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewServer(ctx, cfg, st, chain, engine, frames, broadcaster, "127.0.0.1", 0), st
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("could not marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(into); err != nil {
		t.Fatalf("could not decode response body: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := setupServer(t, &scriptedProvider{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status    string `json:"status"`
		Providers []struct {
			Name      string `json:"name"`
			Reachable bool   `json:"reachable"`
		} `json:"providers"`
	}
	decodeBody(t, rec, &body)
	if body.Status != "ok" {
		t.Errorf("expected status ok, got %q", body.Status)
	}
	if len(body.Providers) != 1 || body.Providers[0].Name != "scripted" {
		t.Errorf("unexpected providers: %+v", body.Providers)
	}
}

func TestEnrollFromPushedFrame(t *testing.T) {
	s, st := setupServer(t, &scriptedProvider{description: "short dark hair, round glasses"})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/frames", map[string]string{"image": testImage()})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 pushing frame, got %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/users", map[string]string{"name": "Alice"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 enrolling, got %d: %s", rec.Code, rec.Body)
	}
	var user store.User
	decodeBody(t, rec, &user)
	if user.Name != "Alice" {
		t.Errorf("expected name Alice, got %q", user.Name)
	}
	if user.FaceDescription != "short dark hair, round glasses" {
		t.Errorf("unexpected face description %q", user.FaceDescription)
	}

	// Duplicate names are rejected, diacritics and case ignored.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/users", map[string]string{"name": "alíce", "image": testImage()})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate name, got %d", rec.Code)
	}

	logs, err := st.Logs().List(context.Background(), 10)
	if err != nil {
		t.Fatalf("could not list logs: %v", err)
	}
	if len(logs) == 0 {
		t.Error("expected an enrollment log entry")
	}
}

func TestEnrollWithoutFrame(t *testing.T) {
	s, _ := setupServer(t, &scriptedProvider{description: "beard"})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/users", map[string]string{"name": "Bob"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without any frame, got %d", rec.Code)
	}
}

func TestUserCRUD(t *testing.T) {
	s, st := setupServer(t, &scriptedProvider{description: "freckles"})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/users", map[string]string{"name": "Alice", "image": testImage()})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var created store.User
	decodeBody(t, rec, &created)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/users/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 getting user, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/v1/users/"+created.ID, map[string]string{"name": "Alicia"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 renaming, got %d", rec.Code)
	}
	var renamed store.User
	decodeBody(t, rec, &renamed)
	if renamed.Name != "Alicia" {
		t.Errorf("expected renamed user, got %q", renamed.Name)
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/v1/users/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting, got %d", rec.Code)
	}
	if _, err := st.Users().Get(context.Background(), created.ID); err == nil {
		t.Error("expected user gone after delete")
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/users/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestRecognizeOneShot(t *testing.T) {
	provider := &scriptedProvider{description: "glasses"}
	s, st := setupServer(t, provider)

	user := &store.User{ID: "u1", Name: "Alice", FaceDescription: "glasses", RegisteredAt: time.Now()}
	if err := st.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("could not create user: %v", err)
	}
	provider.match = &ai.Match{Matched: true, UserID: "u1", Confidence: 0.9, Greeting: "Hi Alice!"}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recognize", map[string]string{"image": testImage()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var match ai.Match
	decodeBody(t, rec, &match)
	if !match.Matched || match.UserID != "u1" {
		t.Errorf("unexpected match: %+v", match)
	}

	got, _ := st.Users().Get(context.Background(), "u1")
	if got.InteractionCount != 1 {
		t.Errorf("expected interaction recorded, got count %d", got.InteractionCount)
	}
}

func TestRecognizeDegradesToNoMatch(t *testing.T) {
	s, st := setupServer(t, &scriptedProvider{})

	user := &store.User{ID: "u1", Name: "Alice", FaceDescription: "glasses", RegisteredAt: time.Now()}
	if err := st.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("could not create user: %v", err)
	}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recognize", map[string]string{"image": testImage()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even when all providers fail, got %d", rec.Code)
	}
	var match ai.Match
	decodeBody(t, rec, &match)
	if match.Matched {
		t.Errorf("expected neutral no-match, got %+v", match)
	}
}

func TestEmotionAppendsHistory(t *testing.T) {
	provider := &scriptedProvider{emotion: &ai.EmotionResult{Emotion: "happy", Confidence: 0.8}}
	s, st := setupServer(t, provider)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/emotion", map[string]string{
		"image":   testImage(),
		"user_id": "u1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var result ai.EmotionResult
	decodeBody(t, rec, &result)
	if result.Emotion != "happy" {
		t.Errorf("expected happy, got %q", result.Emotion)
	}

	history, err := st.Emotions().History(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("could not load history: %v", err)
	}
	if len(history) != 1 || history[0].Emotion != "happy" {
		t.Errorf("expected one happy record, got %+v", history)
	}
}

func TestLivenessNeutralDefault(t *testing.T) {
	s, _ := setupServer(t, &scriptedProvider{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/liveness", map[string]string{"image": testImage()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result ai.SecurityResult
	decodeBody(t, rec, &result)
	if result.Live {
		t.Errorf("expected failed security check when no provider responds, got %+v", result)
	}
}

func TestChatPersistsBothTurns(t *testing.T) {
	provider := &scriptedProvider{reply: "Hello! How can I help?"}
	s, st := setupServer(t, provider)

	user := &store.User{ID: "u1", Name: "Alice", RegisteredAt: time.Now()}
	if err := st.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("could not create user: %v", err)
	}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/chat", map[string]any{
		"user_id": "u1",
		"message": "hi there",
		"voice":   true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var body struct {
		Reply string `json:"reply"`
	}
	decodeBody(t, rec, &body)
	if body.Reply != "Hello! How can I help?" {
		t.Errorf("unexpected reply %q", body.Reply)
	}

	history, err := st.Conversations().History(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("could not load history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(history))
	}
	if history[0].Role != "user" || !history[0].Voice {
		t.Errorf("unexpected user turn: %+v", history[0])
	}
	if history[1].Role != "assistant" {
		t.Errorf("unexpected assistant turn: %+v", history[1])
	}
}

func TestChatUnknownUser(t *testing.T) {
	s, _ := setupServer(t, &scriptedProvider{reply: "hi"})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/chat", map[string]string{
		"user_id": "ghost",
		"message": "hello",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestDetectEmptyOverlayOnFailure(t *testing.T) {
	s, _ := setupServer(t, &scriptedProvider{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/detect", map[string]string{"image": testImage()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var detection ai.Detection
	decodeBody(t, rec, &detection)
	if detection.Count != 0 || len(detection.Faces) != 0 {
		t.Errorf("expected empty detection, got %+v", detection)
	}
}

func TestLogsEndpoint(t *testing.T) {
	s, st := setupServer(t, &scriptedProvider{})

	for i := 0; i < 5; i++ {
		entry := &store.LogEntry{
			ID:        fmt.Sprintf("log-%d", i),
			Timestamp: time.Now(),
			Category:  store.LogInfo,
			Message:   fmt.Sprintf("entry %d", i),
		}
		if err := st.Logs().Append(context.Background(), entry); err != nil {
			t.Fatalf("could not append entry: %v", err)
		}
	}

	rec := doJSON(t, s, http.MethodGet, "/api/v1/logs?limit=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Logs  []store.LogEntry `json:"logs"`
		Count int              `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 3 {
		t.Errorf("expected 3 entries, got %d", body.Count)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/logs?limit=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid limit, got %d", rec.Code)
	}
}

func TestConfigEndpoint(t *testing.T) {
	s, _ := setupServer(t, &scriptedProvider{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Providers  []string `json:"providers"`
		IntervalMS int64    `json:"recognition_interval_ms"`
	}
	decodeBody(t, rec, &body)
	if len(body.Providers) != 1 {
		t.Errorf("expected 1 provider, got %v", body.Providers)
	}
	if body.IntervalMS != 4000 {
		t.Errorf("expected 4000ms interval, got %d", body.IntervalMS)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s, st := setupServer(t, &scriptedProvider{})

	user := &store.User{ID: "u1", Name: "Alice", RegisteredAt: time.Now(), InteractionCount: 7}
	if err := st.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("could not create user: %v", err)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		UserCount    int `json:"user_count"`
		Interactions int `json:"interactions"`
	}
	decodeBody(t, rec, &body)
	if body.UserCount != 1 || body.Interactions != 7 {
		t.Errorf("unexpected stats: %+v", body)
	}
}

func TestRecognitionStartStopEndpoints(t *testing.T) {
	s, _ := setupServer(t, &scriptedProvider{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recognition/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 starting, got %d", rec.Code)
	}
	if !s.engine.Running() {
		t.Error("expected engine running after start")
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/recognition/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 stopping, got %d", rec.Code)
	}
	if s.engine.Running() {
		t.Error("expected engine stopped after stop")
	}
}

func TestSPAFallback(t *testing.T) {
	s, _ := setupServer(t, &scriptedProvider{})

	req := httptest.NewRequest(http.MethodGet, "/some/client/route", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from SPA fallback, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("expected HTML content type, got %q", ct)
	}
}
