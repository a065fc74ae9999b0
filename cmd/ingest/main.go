// Command ingest rebuilds the vector collections from a knowledge-base file.
//
// Usage:
//
//	ingest -passages data/knowledge_base.ndjson [-dims 1536]
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/ingest"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/semantic"
	"github.com/JewelryBoxAI/jewelrybox-mvp/pkg/openai"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	passagesPath := flag.String("passages", "data/knowledge_base.ndjson", "newline-delimited JSON passages file")
	dims := flag.Int("dims", 1536, "embedding vector dimensions")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*passagesPath, *dims, logger); err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(passagesPath string, dims int, logger *slog.Logger) error {
	start := time.Now()
	ctx := context.Background()

	passages, err := ingest.LoadPassages(passagesPath)
	if err != nil {
		return err
	}
	logger.Info("passages loaded", "count", len(passages), "path", passagesPath)

	provider := openai.New(openai.Opts{
		BaseURL:           envOr("OPENAI_BASE_URL", "https://api.openai.com"),
		APIKey:            os.Getenv("OPENAI_API_KEY"),
		EmbedModel:        envOr("EMBED_MODEL", "text-embedding-3-small"),
		RequestsPerSecond: 5,
	})

	store, err := semantic.New(envOr("QDRANT_URL", "localhost:6334"))
	if err != nil {
		return err
	}
	defer store.Close()

	var nc *nats.Conn
	if url := os.Getenv("NATS_URL"); url != "" {
		nc, err = nats.Connect(url)
		if err != nil {
			logger.Warn("nats connect failed, progress events disabled", "err", err)
		} else {
			defer nc.Close()
		}
	}

	builder := ingest.NewBuilder(provider, store, nc, dims, logger)
	if err := builder.BuildIndexes(ctx, passages); err != nil {
		return err
	}

	logger.Info("ingest complete", "duration", time.Since(start))
	return nil
}
