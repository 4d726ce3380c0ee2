package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClaudeComplete_SendsSystemPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-ant" {
			t.Errorf("x-api-key = %q", got)
		}
		var req claudeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System != "be strict" {
			t.Errorf("system = %q, want %q", req.System, "be strict")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"index_html\":\"x\"}"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("sk-ant", WithClaudeBaseURL(srv.URL))
	got, err := c.Complete(context.Background(), "be strict", "build it")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"index_html":"x"}` {
		t.Errorf("Complete = %q", got)
	}
}

func TestClaudeComplete_RetryOn429(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClaudeClient("sk-ant", WithClaudeBaseURL(srv.URL))
	c.retryDelay = time.Millisecond
	if _, err := c.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error after retries")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestOllamaComplete_JSONFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Format != "json" || req.Stream {
			t.Errorf("format = %q stream = %v, want json/false", req.Format, req.Stream)
		}
		if req.Model != "qwen2.5-coder" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Response: "{}"})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/", WithOllamaModel("qwen2.5-coder"))
	got, err := c.Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "{}" {
		t.Errorf("Complete = %q", got)
	}
}

func TestOllamaComplete_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL)
	c.retryDelay = time.Millisecond
	if _, err := c.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestGeminiComplete_UsesBaseURLAndSchema(t *testing.T) {
	var gotPath string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"index_html\":\"x\"}"}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient(context.Background(), "gm-key",
		WithGeminiModel("gemini-test"),
		WithGeminiBaseURL(srv.URL+"/"),
		WithGeminiTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}

	got, err := c.Complete(context.Background(), "be strict", "build it")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"index_html":"x"}` {
		t.Errorf("Complete = %q", got)
	}
	if !strings.Contains(gotPath, "gemini-test:generateContent") {
		t.Errorf("path = %q, want the model's generateContent endpoint", gotPath)
	}
	gen, _ := body["generationConfig"].(map[string]any)
	if gen["responseMimeType"] != "application/json" {
		t.Errorf("generationConfig = %v", gen)
	}
	if body["systemInstruction"] == nil {
		t.Error("system prompt should be sent as systemInstruction")
	}
}
