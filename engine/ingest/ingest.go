// Package ingest builds the vector indexes offline: it loads knowledge-base
// passages from newline-delimited JSON, chunks and embeds them, and writes
// one collection per intent domain plus the unscoped default collection.
// Rebuilds replace each collection wholesale; the live service only ever
// reads them.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/intent"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/semantic"
	"github.com/JewelryBoxAI/jewelrybox-mvp/pkg/fn"
	"github.com/JewelryBoxAI/jewelrybox-mvp/pkg/natsutil"
)

// EmbedBatchSize is the max chunks per embedding request.
const EmbedBatchSize = 100

// EmbedBatcher embeds a batch of texts, preserving order.
type EmbedBatcher interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter is the store surface the builder needs.
type VectorWriter interface {
	RecreateCollection(ctx context.Context, collection string, dims int) error
	Upsert(ctx context.Context, collection string, records []semantic.VectorRecord) error
}

// Builder constructs the per-domain vector indexes.
type Builder struct {
	embed  EmbedBatcher
	store  VectorWriter
	nc     *nats.Conn // optional; nil disables progress events
	dims   int
	logger *slog.Logger
}

// NewBuilder creates a Builder. nc may be nil.
func NewBuilder(embed EmbedBatcher, store VectorWriter, nc *nats.Conn, dims int, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{embed: embed, store: store, nc: nc, dims: dims, logger: logger}
}

// LoadPassages reads passages from a newline-delimited JSON file. Each line
// holds `{"content": ..., "metadata": {...}}`; lines without content are
// skipped.
func LoadPassages(path string) ([]domain.Passage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	var passages []domain.Passage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var p domain.Passage
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("ingest: %s line %d: %w", path, line, err)
		}
		if p.Content == "" {
			continue
		}
		passages = append(passages, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ingest: scan %s: %w", path, err)
	}
	return passages, nil
}

// BuildIndexes rebuilds every collection from the given passages. Passages
// are grouped by their metadata domain tag; every passage also lands in the
// default collection so the orchestrator's broader fallback pass sees the
// whole knowledge base.
func (b *Builder) BuildIndexes(ctx context.Context, passages []domain.Passage) error {
	byCollection := map[string][]domain.Passage{
		intent.DefaultCollection: passages,
	}
	for _, p := range passages {
		d := domain.Domain(p.Metadata["domain"])
		if c := intent.RouteToCollection(d); c != intent.DefaultCollection {
			byCollection[c] = append(byCollection[c], p)
		}
	}

	for _, collection := range intent.Collections() {
		group := byCollection[collection]
		if len(group) == 0 {
			b.logger.Info("ingest: no passages for collection, skipping", "collection", collection)
			continue
		}
		if err := b.buildCollection(ctx, collection, group); err != nil {
			return err
		}
	}
	return nil
}

// buildCollection drops, recreates, and fills one collection.
func (b *Builder) buildCollection(ctx context.Context, collection string, passages []domain.Passage) error {
	if err := b.store.RecreateCollection(ctx, collection, b.dims); err != nil {
		return err
	}

	var chunks []Chunk
	for _, p := range passages {
		chunks = append(chunks, chunksFromPassage(p, DefaultChunkSize, DefaultOverlap)...)
	}

	stored := 0
	for _, batch := range fn.Chunk(chunks, EmbedBatchSize) {
		texts := fn.Map(batch, func(c Chunk) string { return c.Text })

		result := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[[][]float32] {
			return fn.FromPair(b.embed.EmbedBatch(ctx, texts))
		})
		vectors, err := result.Unwrap()
		if err != nil {
			return fmt.Errorf("ingest: embed batch for %s: %w", collection, err)
		}

		records := make([]semantic.VectorRecord, len(batch))
		for i, c := range batch {
			payload := map[string]any{
				"content":     c.Text,
				"chunk_index": c.Index,
			}
			if c.Domain != "" {
				payload["domain"] = c.Domain
			}
			if c.URL != "" {
				payload["url"] = c.URL
			}
			records[i] = semantic.VectorRecord{
				ID:        uuid.NewString(),
				Embedding: vectors[i],
				Payload:   payload,
			}
		}

		if err := b.store.Upsert(ctx, collection, records); err != nil {
			return err
		}
		stored += len(records)
	}

	b.logger.Info("ingest: collection built",
		"collection", collection, "passages", len(passages), "chunks", len(chunks))

	if b.nc != nil {
		ev := ProgressEvent{
			Collection: collection,
			Passages:   len(passages),
			Chunks:     len(chunks),
			Stored:     stored,
		}
		if err := natsutil.Publish(ctx, b.nc, natsutil.SubjectIngestProgress, ev); err != nil {
			b.logger.Warn("ingest: progress publish failed", "err", err)
		}
	}
	return nil
}
