package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbedBatch(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "test-embed" {
			t.Errorf("model = %q", req.Model)
		}

		resp := map[string]any{"data": []map[string]any{
			{"embedding": []float32{0.1, 0.2}},
			{"embedding": []float32{0.3, 0.4}},
		}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(Opts{BaseURL: srv.URL, APIKey: "sk-test", EmbedModel: "test-embed"})
	vecs, err := c.EmbedBatch(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 || vecs[1][0] != 0.3 {
		t.Errorf("vecs = %v", vecs)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	}))
	defer srv.Close()

	c := New(Opts{BaseURL: srv.URL})
	if _, err := c.EmbedBatch(context.Background(), []string{"one"}); err == nil {
		t.Error("expected count-mismatch error")
	}
}

func TestEmbed_Single(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{"embedding": []float32{1, 2, 3}},
		}})
	}))
	defer srv.Close()

	c := New(Opts{BaseURL: srv.URL})
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("vec = %v", vec)
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-test",
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  Hello there.  "}},
			},
			"usage": map[string]any{"total_tokens": 21},
		})
	}))
	defer srv.Close()

	c := New(Opts{BaseURL: srv.URL})
	reply, err := c.Chat(context.Background(), []ChatMessage{
		{Role: "system", Content: "You are a concierge."},
		{Role: "user", Content: "hi"},
	}, ChatOpts{Temperature: 0.9, MaxTokens: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "Hello there." {
		t.Errorf("Text = %q (should be trimmed)", reply.Text)
	}
	if reply.Model != "gpt-test" || reply.TokensUsed != 21 {
		t.Errorf("reply = %+v", reply)
	}
}

func TestChat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := New(Opts{BaseURL: srv.URL})
	if _, err := c.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, ChatOpts{}); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestPost_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Opts{BaseURL: srv.URL})
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error for non-200 status")
	}
}
