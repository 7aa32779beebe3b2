package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// newOllamaTestServer serves /api/tags (reachability probe) and delegates
// /api/chat to the given handler.
func newOllamaTestServer(t *testing.T, chat http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models": []}`))
	})
	mux.HandleFunc("/api/chat", chat)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func ollamaReply(t *testing.T, w http.ResponseWriter, model, content string) {
	t.Helper()
	resp := map[string]any{
		"model":             model,
		"message":           map[string]string{"role": "assistant", "content": content},
		"done":              true,
		"prompt_eval_count": 40,
		"eval_count":        20,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Errorf("could not encode response: %v", err)
	}
}

func TestOllamaReachableCaching(t *testing.T) {
	var probes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.Write([]byte(`{"models": []}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := NewOllamaProvider(server.URL, "", "")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !p.Reachable(ctx) {
			t.Fatal("expected daemon reachable")
		}
	}
	if probes.Load() != 1 {
		t.Errorf("expected 1 probe thanks to the cache, got %d", probes.Load())
	}
}

func TestOllamaUnreachable(t *testing.T) {
	// Nothing listens on this address.
	p := NewOllamaProvider("http://127.0.0.1:1", "", "")
	if p.Reachable(context.Background()) {
		t.Error("expected daemon unreachable")
	}

	frame := makeTestJPEG(t, 320, 240)
	if _, err := p.AnalyzeEmotion(context.Background(), frame); err == nil {
		t.Error("expected error when daemon is unreachable")
	}
}

func TestOllamaEmotionNormalizesSynonyms(t *testing.T) {
	server := newOllamaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Local models often wrap the JSON in prose.
		ollamaReply(t, w, "llama3.2-vision:11b", `Here you go: {"emotion": "joy", "confidence": 0.7} Hope that helps!`)
	})

	p := NewOllamaProvider(server.URL, "", "")
	frame := makeTestJPEG(t, 320, 240)

	result, err := p.AnalyzeEmotion(context.Background(), frame)
	if err != nil {
		t.Fatalf("emotion analysis failed: %v", err)
	}
	if result.Emotion != "happy" {
		t.Errorf("expected synonym collapsed to happy, got %q", result.Emotion)
	}

	usage := p.GetUsage()
	if usage.InputTokens != 40 || usage.OutputTokens != 20 {
		t.Errorf("unexpected usage: %+v", usage)
	}
	if usage.TotalCost != 0 {
		t.Errorf("local models are free, got cost %f", usage.TotalCost)
	}
}

func TestOllamaChatUsesChatModel(t *testing.T) {
	server := newOllamaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("could not decode request: %v", err)
		}
		if req.Model != "gemma3:4b" {
			t.Errorf("expected chat model gemma3:4b, got %q", req.Model)
		}
		if req.Format != "" {
			t.Errorf("chat should not force JSON format, got %q", req.Format)
		}
		if req.Messages[0].Role != "system" {
			t.Errorf("expected system prompt first, got %q", req.Messages[0].Role)
		}
		ollamaReply(t, w, req.Model, "Hello!")
	})

	p := NewOllamaProvider(server.URL, "", "")
	reply, err := p.Chat(context.Background(), "", nil, "hi")
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if reply != "Hello!" {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestOllamaRecognizeSendsCandidates(t *testing.T) {
	server := newOllamaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("could not decode request: %v", err)
		}
		if req.Format != "json" {
			t.Errorf("expected JSON format for structured ops, got %q", req.Format)
		}
		if len(req.Messages[1].Images) != 1 {
			t.Errorf("expected the frame attached to the user message")
		}
		ollamaReply(t, w, req.Model, `{"matched": false, "confidence": 0.1}`)
	})

	p := NewOllamaProvider(server.URL, "", "")
	frame := makeTestJPEG(t, 320, 240)
	candidates := []Candidate{{ID: "u1", Name: "Alice", FaceDescription: "glasses"}}

	match, err := p.RecognizeUser(context.Background(), frame, candidates)
	if err != nil {
		t.Fatalf("recognize failed: %v", err)
	}
	if match.Matched {
		t.Errorf("expected no match, got %+v", match)
	}
}
