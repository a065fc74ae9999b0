// Command chat is an interactive terminal client for the conversational
// pipeline. Useful for smoke-testing persona, retrieval, and link injection
// without the HTTP server in front.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/chat"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/cta"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/intentcfg"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/retrieval"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/semantic"
	"github.com/JewelryBoxAI/jewelrybox-mvp/pkg/openai"
	"github.com/JewelryBoxAI/jewelrybox-mvp/pkg/sessions"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	persona, err := chat.LoadPersona(envOr("PERSONA_FILE", "config/persona.json"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "persona:", err)
		os.Exit(1)
	}
	intents, err := intentcfg.Load(envOr("INTENTS_FILE", "config/intents.json"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "intents:", err)
		os.Exit(1)
	}

	provider := openai.New(openai.Opts{
		BaseURL:    envOr("OPENAI_BASE_URL", "https://api.openai.com"),
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		EmbedModel: envOr("EMBED_MODEL", "text-embedding-3-small"),
		ChatModel:  envOr("CHAT_MODEL", "gpt-4o-mini"),
	})

	var retriever chat.SmartRetriever
	store, err := semantic.New(envOr("QDRANT_URL", "localhost:6334"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "qdrant unavailable, retrieval disabled:", err)
	} else {
		defer store.Close()
		retriever = retrieval.New(provider, store, logger)
	}

	opts := chat.DefaultOptions()
	opts.Features.Retrieval = retriever != nil
	svc := chat.New(provider, retriever, cta.NewResolver(intents, logger), persona, opts, logger)

	sessionID := sessions.NewSessionID()
	var history []domain.Message

	fmt.Printf("%s ready. Type a message, or 'quit' to exit.\n\n", persona.Identity)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			break
		}

		ans, err := svc.Query(context.Background(), domain.Query{
			SessionID: sessionID,
			Text:      input,
			History:   history,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}

		fmt.Printf("\n%s\n\n", ans.Reply)
		if len(ans.Sources) > 0 {
			fmt.Printf("[%d context passages, model %s]\n\n", len(ans.Sources), ans.Model)
		}

		history = append(history,
			domain.Message{Role: "human", Content: input},
			domain.Message{Role: "ai", Content: ans.Reply},
		)
	}
}
