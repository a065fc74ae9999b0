// Package retrieval composes the intent classifier, collection router, and
// vector store into the layered retrieval cascade: a precise domain-scoped
// search first, then a broader pass against the default collection when the
// primary result is weak. Retrieval failures never propagate; the caller sees
// an empty result and the request continues without context.
package retrieval

import (
	"context"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/intent"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/semantic"
)

const (
	// highConfidence is the primary-pass score above which no fallback
	// search is issued.
	highConfidence = 0.8
	// fallbackThreshold is the looser similarity floor for the second pass
	// against the default collection.
	fallbackThreshold = 0.6
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts vector search over a named collection.
type Searcher interface {
	Search(ctx context.Context, collection string, embedding []float32, topK int, threshold float32) ([]semantic.SearchResult, error)
}

// Retriever runs threshold-filtered similarity search over the knowledge base.
type Retriever struct {
	embed  Embedder
	search Searcher
	logger *slog.Logger
}

// New creates a Retriever.
func New(embed Embedder, search Searcher, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embed: embed, search: search, logger: logger}
}

// Retrieve returns up to k passages from the named collection scoring at or
// above threshold, in descending score order. Embedding-provider failures and
// unavailable collections degrade to an empty result with a warning; they are
// never returned as errors.
func (r *Retriever) Retrieve(ctx context.Context, query, collection string, k int, threshold float32) []domain.SearchHit {
	if k <= 0 {
		return nil
	}

	vec, err := r.embed.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("retrieval: embed failed, continuing without context", "err", err)
		return nil
	}

	results, err := r.search.Search(ctx, collection, vec, k, threshold)
	if err != nil {
		r.logger.Warn("retrieval: search failed, continuing without context", "collection", collection, "err", err)
		return nil
	}

	hits := make([]domain.SearchHit, len(results))
	for i, res := range results {
		hits[i] = domain.SearchHit{
			Content: res.Content,
			Score:   res.Score,
			URL:     res.URL,
			Domain:  res.Domain,
		}
	}
	return hits
}

// SmartRetrieve classifies the query, searches its domain collection, and
// falls back to a broader default-collection search when the primary pass is
// empty or its best score stays under the high-confidence bound. Merged
// results are sorted by descending score and truncated to k.
//
// The fallback uses k/2 slots; for k <= 1 that is zero, so no fallback query
// is issued. That is intentional: the broader pass only adds value when k
// leaves room for extra candidates.
func (r *Retriever) SmartRetrieve(ctx context.Context, query string, k int, confidenceThreshold float32) []domain.SearchHit {
	ctx, span := otel.Tracer("engine/retrieval").Start(ctx, "SmartRetrieve")
	defer span.End()

	d := intent.Classify(query)
	collection := intent.RouteToCollection(d)
	span.SetAttributes(
		attribute.String("retrieval.domain", string(d)),
		attribute.String("retrieval.collection", collection),
	)

	hits := r.Retrieve(ctx, query, collection, k, confidenceThreshold)

	if needsFallback(hits) && k/2 > 0 {
		span.SetAttributes(attribute.Bool("retrieval.fallback", true))
		r.logger.Info("retrieval: low-confidence primary, broadening search",
			"domain", d, "primary_hits", len(hits))
		fb := r.Retrieve(ctx, query, intent.DefaultCollection, k/2, fallbackThreshold)
		hits = append(hits, fb...)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	hits = dedupe(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// needsFallback reports whether the primary pass missed or stayed below the
// high-confidence bound.
func needsFallback(hits []domain.SearchHit) bool {
	if len(hits) == 0 {
		return true
	}
	var max float32
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	return max < highConfidence
}

// dedupe drops later duplicates of the same passage content. The default
// collection holds every passage, so the fallback pass can re-surface a
// primary hit; after the descending sort the first occurrence is the
// best-scored one.
func dedupe(hits []domain.SearchHit) []domain.SearchHit {
	seen := make(map[string]bool, len(hits))
	out := hits[:0]
	for _, h := range hits {
		if seen[h.Content] {
			continue
		}
		seen[h.Content] = true
		out = append(out, h)
	}
	return out
}
