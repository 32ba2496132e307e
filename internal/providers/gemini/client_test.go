package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lizzyg/chatbridge/internal/config"
	"github.com/lizzyg/chatbridge/internal/core"
	"github.com/lizzyg/chatbridge/internal/providers/retry"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("missing api key")
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "be brief" {
			t.Errorf("unexpected system instruction %+v", req.SystemInstruction)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "Hello" {
			t.Errorf("unexpected contents %+v", req.Contents)
		}
		if req.GenerationConfig["maxOutputTokens"] != float64(64) {
			t.Errorf("unexpected generation config %+v", req.GenerationConfig)
		}
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"parts":[{"text":"Hi"},{"text":"there"}]}}],
			"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":2,"totalTokenCount":5}
		}`))
	}))
	defer srv.Close()

	c := New(config.UpstreamConfig{APIKey: "g-key", BaseURL: srv.URL}, srv.Client(), retry.Config{MaxAttempts: 1}, nil)
	got, err := c.Complete(context.Background(), core.CompletionRequest{
		Model:     "gemini-1.5-flash",
		System:    "be brief",
		Input:     "Hello",
		MaxTokens: 64,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Message != "Hi\nthere" {
		t.Fatalf("message = %q", got.Message)
	}
	if got.Usage != (core.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}) {
		t.Fatalf("usage = %+v", got.Usage)
	}
}

func TestComplete_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(config.UpstreamConfig{BaseURL: srv.URL}, srv.Client(), retry.Config{MaxAttempts: 3}, nil)
	_, err := c.Complete(context.Background(), core.CompletionRequest{Model: "m", Input: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}
