package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeServer struct {
	mu      sync.Mutex
	calls   map[string]int
	failing map[string]bool
	last    map[string]any
}

func newFakeServer(failing ...string) (*fakeServer, *httptest.Server) {
	f := &fakeServer{calls: map[string]int{}, failing: map[string]bool{}}
	for _, m := range failing {
		f.failing[m] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3:8b"},{"name":"mistral"}]}`))
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		model, _ := body["model"].(string)

		f.mu.Lock()
		f.calls[model]++
		f.last = body
		fail := f.failing[model]
		f.mu.Unlock()

		if fail {
			http.Error(w, "model unavailable", http.StatusInternalServerError)
			return
		}
		if r.URL.Path == "/api/chat" {
			_, _ = w.Write([]byte(`{"model":"` + model + `","message":{"role":"assistant","content":"hi from ` + model + `"},"done":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"model":"` + model + `","response":"from ` + model + `","done":true}`))
	}))
	return f, srv
}

func newTestClient(url string) *Client {
	return New(Config{BaseURL: url, Model: "llama3:8b", FallbackModel: "mistral", DefaultTemperature: 0.3}).
		WithBackoff(time.Millisecond, 5*time.Millisecond)
}

func TestGenerateSendsPayload(t *testing.T) {
	f, srv := newFakeServer()
	defer srv.Close()
	c := newTestClient(srv.URL)
	defer c.Close()

	resp, err := c.Generate(context.Background(), GenerateRequest{Prompt: "p", System: "s", MaxTokens: 64, Format: "json"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Fallback || resp.Response != "from llama3:8b" || !resp.Done {
		t.Errorf("unexpected response %+v", resp)
	}
	if f.last["stream"] != false || f.last["format"] != "json" || f.last["system"] != "s" {
		t.Errorf("unexpected payload %v", f.last)
	}
	opts := f.last["options"].(map[string]any)
	if opts["temperature"].(float64) != 0.3 || opts["num_predict"].(float64) != 64 {
		t.Errorf("unexpected options %v", opts)
	}
}

func TestGenerateFallsBack(t *testing.T) {
	f, srv := newFakeServer("llama3:8b")
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Generate(context.Background(), GenerateRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !resp.Fallback || resp.Response != "from mistral" {
		t.Errorf("expected fallback response, got %+v", resp)
	}
	if f.calls["llama3:8b"] != 3 || f.calls["mistral"] != 1 {
		t.Errorf("unexpected calls %v", f.calls)
	}
}

func TestGenerateBothFail(t *testing.T) {
	f, srv := newFakeServer("llama3:8b", "mistral")
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), GenerateRequest{Prompt: "p"})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("error should carry underlying message: %v", err)
	}
	if f.calls["llama3:8b"] != 3 || f.calls["mistral"] != 1 {
		t.Errorf("expected 3 primary + 1 fallback, got %v", f.calls)
	}
}

func TestGenerateNoFallbackWhenSameModel(t *testing.T) {
	f, srv := newFakeServer("mistral")
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), GenerateRequest{Prompt: "p", Model: "mistral"})
	if err == nil {
		t.Fatal("expected error")
	}
	if f.calls["mistral"] != 3 {
		t.Errorf("expected only the 3 primary attempts, got %v", f.calls)
	}
}

func TestChatFallbackWithoutRetry(t *testing.T) {
	f, srv := newFakeServer("llama3:8b")
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !resp.Fallback || resp.Response != "hi from mistral" || resp.Message == nil {
		t.Errorf("unexpected chat response %+v", resp)
	}
	if f.calls["llama3:8b"] != 1 {
		t.Errorf("chat should not retry, got %v", f.calls)
	}
}

func TestHealthAndModels(t *testing.T) {
	_, srv := newFakeServer()
	c := newTestClient(srv.URL)
	if !c.CheckHealth(context.Background()) {
		t.Error("expected healthy")
	}
	if got := c.ListModels(context.Background()); len(got) != 2 || got[0] != "llama3:8b" {
		t.Errorf("unexpected models %v", got)
	}

	srv.Close()
	if c.CheckHealth(context.Background()) {
		t.Error("expected unhealthy after close")
	}
	if got := c.ListModels(context.Background()); got == nil || len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}
