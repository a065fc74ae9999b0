package openai

import (
	"context"
	"fmt"
	"strings"
)

// ChatMessage is one message in a chat-completion request.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatOpts tunes a single chat-completion call.
type ChatOpts struct {
	Temperature float32
	MaxTokens   int
}

// ChatReply is the provider's answer.
type ChatReply struct {
	Text       string
	Model      string
	TokensUsed int
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat runs a chat completion over the given messages.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage, opts ChatOpts) (*ChatReply, error) {
	var resp chatResponse
	req := chatRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if err := c.post(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat: no choices in response")
	}
	return &ChatReply{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
