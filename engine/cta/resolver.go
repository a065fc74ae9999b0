// Package cta decides whether a model reply earns a call-to-action link and
// applies it. Resolution is a three-layer precision cascade: exact intent
// phrases outrank semantically retrieved context, which outranks loose
// synonym matching. Each layer trades recall for precision in that order, and
// the first hit wins outright.
package cta

import (
	"log/slog"
	"strings"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/intentcfg"
)

// semanticMatchThreshold is the strict score bound a retrieved passage must
// exceed before its content participates in Layer 2.
const semanticMatchThreshold = 0.85

// Resolver maps user input (and optionally retrieved passages) to at most one
// call-to-action URL. Stateless over an immutable Config; safe for concurrent
// use.
type Resolver struct {
	cfg    *intentcfg.Config
	logger *slog.Logger
}

// NewResolver creates a Resolver over the loaded intent configuration.
func NewResolver(cfg *intentcfg.Config, logger *slog.Logger) *Resolver {
	if cfg == nil {
		cfg = intentcfg.Empty()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cfg: cfg, logger: logger}
}

// Match describes a successful resolution.
type Match struct {
	URL   string
	Key   string
	Layer int // 1..3
}

// Resolve returns the single most relevant call-to-action URL for the user
// input, or ok=false when nothing matches. No match is the normal outcome,
// not a failure.
func (r *Resolver) Resolve(userInput string, semanticResults []domain.SearchHit) (Match, bool) {
	input := strings.ToLower(userInput)

	// Layer 1: high-confidence literal trigger phrases. Load-time validation
	// guarantees every trigger key exists, but a lookup miss still just
	// falls through rather than raising.
	for _, tr := range r.cfg.Triggers() {
		if !strings.Contains(input, tr.Phrase) {
			continue
		}
		if url, ok := r.cfg.URLForKey(tr.Intent); ok {
			return Match{URL: url, Key: tr.Intent, Layer: 1}, true
		}
	}

	// Layer 2: synonyms against high-scoring retrieved passages, in the
	// caller's confidence order.
	for _, hit := range semanticResults {
		if hit.Score <= semanticMatchThreshold {
			continue
		}
		content := strings.ToLower(hit.Content)
		for _, rec := range r.cfg.Records() {
			for _, syn := range rec.Synonyms {
				if strings.Contains(content, syn) {
					return Match{URL: rec.URL, Key: rec.Key, Layer: 2}, true
				}
			}
		}
	}

	// Layer 3: synonyms against the raw input, in configuration order.
	for _, rec := range r.cfg.Records() {
		for _, syn := range rec.Synonyms {
			if strings.Contains(input, syn) {
				return Match{URL: rec.URL, Key: rec.Key, Layer: 3}, true
			}
		}
	}

	r.logger.Debug("cta: no relevant url for input")
	return Match{}, false
}
