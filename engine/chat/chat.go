// Package chat orchestrates the conversational pipeline. It accepts a user
// message plus session history, optionally retrieves knowledge-base context,
// builds the persona prompt, calls the language model, and post-processes the
// reply through the call-to-action annotator.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/cta"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
	"github.com/JewelryBoxAI/jewelrybox-mvp/pkg/openai"
)

// Completer abstracts the chat-completion provider.
type Completer interface {
	Chat(ctx context.Context, messages []openai.ChatMessage, opts openai.ChatOpts) (*openai.ChatReply, error)
}

// SmartRetriever abstracts the layered retrieval cascade.
type SmartRetriever interface {
	SmartRetrieve(ctx context.Context, query string, k int, confidenceThreshold float32) []domain.SearchHit
}

// Features switches optional pipeline stages on or off. The same service
// serves a bare persona chat and the full retrieval-plus-links variant.
type Features struct {
	Retrieval bool
	CTALinks  bool
}

// Options configures the pipeline behaviour.
type Options struct {
	Features            Features
	TopK                int
	ConfidenceThreshold float32
	Temperature         float32
	MaxTokens           int
	SearchTimeout       time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Features:            Features{Retrieval: true, CTALinks: true},
		TopK:                3,
		ConfidenceThreshold: 0.75,
		Temperature:         0.9,
		MaxTokens:           1024,
		SearchTimeout:       5 * time.Second,
	}
}

// Service is the conversational pipeline.
type Service struct {
	llm       Completer
	retriever SmartRetriever
	resolver  *cta.Resolver
	persona   *Persona
	opts      Options
	logger    *slog.Logger
}

// New creates a chat Service. retriever may be nil when Features.Retrieval is
// off.
func New(llm Completer, retriever SmartRetriever, resolver *cta.Resolver, persona *Persona, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		llm:       llm,
		retriever: retriever,
		resolver:  resolver,
		persona:   persona,
		opts:      opts,
		logger:    logger,
	}
}

// Answer is the structured response from the pipeline.
type Answer struct {
	Reply      string             `json:"reply"`
	Sources    []domain.SearchHit `json:"sources,omitempty"`
	Model      string             `json:"model"`
	TokensUsed int                `json:"tokens_used"`
	// CTAURL and CTALayer report the injected link, if any. Layer is 1-3
	// per resolver layer, 0 when no link was injected.
	CTAURL   string `json:"cta_url,omitempty"`
	CTALayer int    `json:"cta_layer,omitempty"`
}

// Query runs the full pipeline for one user turn.
func (s *Service) Query(ctx context.Context, q domain.Query) (*Answer, error) {
	ctx, span := otel.Tracer("engine/chat").Start(ctx, "Query")
	defer span.End()

	if err := domain.ValidateQuery(q); err != nil {
		return nil, err
	}

	var hits []domain.SearchHit
	if s.opts.Features.Retrieval && s.retriever != nil {
		searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
		hits = s.retriever.SmartRetrieve(searchCtx, q.Text, s.opts.TopK, s.opts.ConfidenceThreshold)
		cancel()
		s.logger.Info("chat retrieval done", "hits", len(hits))
	}

	messages := s.buildMessages(q, hits)

	reply, err := s.llm.Chat(ctx, messages, openai.ChatOpts{
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: completion: %w", err)
	}
	text := reply.Text
	if text == "" {
		return nil, domain.ErrEmptyReply
	}

	ans := &Answer{
		Sources:    hits,
		Model:      reply.Model,
		TokensUsed: reply.TokensUsed,
	}
	if s.opts.Features.CTALinks {
		if m, ok := s.resolver.Resolve(q.Text, hits); ok {
			text = cta.AppendLink(text, m.URL)
			ans.CTAURL = m.URL
			ans.CTALayer = m.Layer
		}
	}
	ans.Reply = text
	return ans, nil
}

// Process re-applies reply post-processing to an already generated response.
// The voice path synthesizes speech client-side and sends the transcript pair
// back for the same annotation the text path gets.
func (s *Service) Process(userInput, reply string) string {
	if !s.opts.Features.CTALinks {
		return reply
	}
	return s.resolver.Annotate(userInput, reply, nil)
}

// buildMessages assembles system prompt, retrieved context, history, and the
// user turn.
func (s *Service) buildMessages(q domain.Query, hits []domain.SearchHit) []openai.ChatMessage {
	system := s.persona.SystemPrompt()
	if len(hits) > 0 {
		var b strings.Builder
		b.WriteString("\nRelevant knowledge-base context:\n")
		for _, h := range hits {
			fmt.Fprintf(&b, "- (%.2f) %s\n", h.Score, h.Content)
		}
		system += b.String()
	}

	messages := make([]openai.ChatMessage, 0, len(q.History)+2)
	messages = append(messages, openai.ChatMessage{Role: "system", Content: system})
	for _, m := range q.History {
		role := "user"
		if m.Role == "ai" || m.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, openai.ChatMessage{Role: role, Content: m.Content})
	}
	return append(messages, openai.ChatMessage{Role: "user", Content: q.Text})
}
