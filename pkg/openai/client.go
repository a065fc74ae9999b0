// Package openai provides embeddings and chat-completion clients for an
// OpenAI-compatible HTTP API. Outbound calls are rate limited so index
// rebuilds cannot exhaust the provider quota serving live traffic.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client talks to an OpenAI-compatible API.
type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	chatModel  string
	httpc      *http.Client
	limiter    *rate.Limiter
}

// Opts configures the client.
type Opts struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	ChatModel  string
	// RequestsPerSecond caps outbound calls; 0 means no limit.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// New creates a Client. Zero-valued options fall back to OpenAI defaults.
func New(opts Opts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com"
	}
	if opts.EmbedModel == "" {
		opts.EmbedModel = "text-embedding-3-small"
	}
	if opts.ChatModel == "" {
		opts.ChatModel = "gpt-4o-mini"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	var lim *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		embedModel: opts.EmbedModel,
		chatModel:  opts.ChatModel,
		httpc:      &http.Client{Timeout: opts.Timeout},
		limiter:    lim,
	}
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("openai %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openai %s decode: %w", path, err)
	}
	return nil
}
