package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	infraAI "github.com/felixgeelhaar/pillars/pkg/ai"
	"github.com/felixgeelhaar/pillars/pkg/domain/ai"
)

func TestOllamaProvider_Basic(t *testing.T) {
	p := infraAI.NewOllamaProvider("")
	if p.ID() != "ollama:llama3" {
		t.Errorf("expected ID ollama:llama3, got %s", p.ID())
	}
}

func TestOllamaProvider_Validation(t *testing.T) {
	p := infraAI.NewOllamaProvider("invalid model;")
	if _, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "hi"}); err == nil {
		t.Error("expected error for invalid model name")
	}
	p = infraAI.NewOllamaProvider("llama3")
	if _, err := p.Complete(context.Background(), ai.CompletionRequest{Temperature: -1}); err == nil {
		t.Error("expected error for negative temp")
	}
}

func TestOllamaProvider_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response":          "  [] ",
			"done":              true,
			"prompt_eval_count": 12,
			"eval_count":        3,
		})
	}))
	defer srv.Close()

	p := infraAI.NewOllamaProvider("llama3")
	p.BaseURL = srv.URL
	resp, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "plan", System: "coach", JSON: true, MaxTokens: 50})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "[]" || resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got["format"] != "json" || got["system"] != "coach" {
		t.Fatalf("unexpected request body %v", got)
	}
}

func TestOllamaProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := infraAI.NewOllamaProvider("llama3")
	p.BaseURL = srv.URL
	if _, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestNewProvider(t *testing.T) {
	if p, err := infraAI.NewProvider("mock", "m"); err != nil || p.ID() != "mock:m" {
		t.Fatalf("mock provider: %v %v", p, err)
	}
	if _, err := infraAI.NewProvider("gpt-99", ""); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}
