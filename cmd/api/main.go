// Package main implements the JewelryBox assistant API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/chat"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/cta"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/intentcfg"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/retrieval"
	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/semantic"
	"github.com/JewelryBoxAI/jewelrybox-mvp/pkg/metrics"
	"github.com/JewelryBoxAI/jewelrybox-mvp/pkg/mid"
	"github.com/JewelryBoxAI/jewelrybox-mvp/pkg/natsutil"
	"github.com/JewelryBoxAI/jewelrybox-mvp/pkg/openai"
	"github.com/JewelryBoxAI/jewelrybox-mvp/pkg/resilience"
	"github.com/JewelryBoxAI/jewelrybox-mvp/pkg/sessions"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	OpenAIBase  string
	OpenAIKey   string
	EmbedModel  string
	ChatModel   string
	QdrantURL   string
	RedisURL    string
	NATSURL     string
	CORSOrigin  string
	PersonaFile string
	IntentsFile string
	Retrieval   bool
	CTALinks    bool
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		OpenAIBase:  envOr("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		EmbedModel:  envOr("EMBED_MODEL", "text-embedding-3-small"),
		ChatModel:   envOr("CHAT_MODEL", "gpt-4o-mini"),
		QdrantURL:   envOr("QDRANT_URL", "localhost:6334"),
		RedisURL:    os.Getenv("REDIS_URL"),
		NATSURL:     os.Getenv("NATS_URL"),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
		PersonaFile: envOr("PERSONA_FILE", "config/persona.json"),
		IntentsFile: envOr("INTENTS_FILE", "config/intents.json"),
		Retrieval:   envOr("FEATURE_RETRIEVAL", "true") == "true",
		CTALinks:    envOr("FEATURE_CTA_LINKS", "true") == "true",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var met = metrics.New()

var (
	mChatRequests = met.Counter("jewelrybox_chat_requests_total", "Chat requests served")
	mChatErrors   = met.Counter("jewelrybox_chat_errors_total", "Chat requests failed")
	mChatDuration = met.Histogram("jewelrybox_chat_duration_seconds", "Chat request latency", nil)
	mInjections   = func(layer string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("jewelrybox_cta_injections_total", "layer", layer), "CTA links injected by resolver layer")
	}
	mSessionClears = met.Counter("jewelrybox_session_clears_total", "Sessions cleared")
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Persona (required) ---
	persona, err := chat.LoadPersona(cfg.PersonaFile)
	if err != nil {
		return fmt.Errorf("persona config: %w", err)
	}

	// --- Intent configuration (optional; degrades to no URL injection) ---
	intents, err := intentcfg.Load(cfg.IntentsFile)
	if err != nil {
		return fmt.Errorf("intent config: %w", err)
	}
	if intents.IsEmpty() {
		logger.Warn("intent config missing or empty, URL injection disabled", "path", cfg.IntentsFile)
	}
	resolver := cta.NewResolver(intents, logger)

	// --- Provider client ---
	provider := openai.New(openai.Opts{
		BaseURL:           cfg.OpenAIBase,
		APIKey:            cfg.OpenAIKey,
		EmbedModel:        cfg.EmbedModel,
		ChatModel:         cfg.ChatModel,
		RequestsPerSecond: 10,
	})

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Retriever with breaker-guarded embedder ---
	breaker := resilience.NewBreaker(resilience.DefaultBreakerOpts)
	retriever := retrieval.New(
		&guardedEmbedder{provider: provider, breaker: breaker},
		vectorStore,
		logger,
	)

	// --- Session store ---
	store := newSessionStore(cfg, logger)

	// --- Optional NATS transcript events ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn("nats connect failed, transcript events disabled", "err", err)
		} else {
			defer nc.Close()
		}
	}

	// --- Chat service ---
	opts := chat.DefaultOptions()
	opts.Features = chat.Features{Retrieval: cfg.Retrieval, CTALinks: cfg.CTALinks}
	chatSvc := chat.New(provider, retriever, resolver, persona, opts, logger)

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", met.Handler())
	mux.HandleFunc("POST /chat", handleChat(chatSvc, store, nc, logger))
	mux.HandleFunc("POST /voice/process", handleVoiceProcess(chatSvc))
	mux.HandleFunc("POST /clear_chat", handleClearChat(store, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.OTel("jewelrybox-api"),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// newSessionStore picks Redis when configured, in-memory otherwise.
func newSessionStore(cfg Config, logger *slog.Logger) sessions.Store {
	const maxTurns = 50
	if cfg.RedisURL == "" {
		return sessions.NewMemoryStore(maxTurns)
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, falling back to in-memory sessions", "err", err)
		return sessions.NewMemoryStore(maxTurns)
	}
	return sessions.NewRedisStore(redis.NewClient(redisOpts), 24*time.Hour, maxTurns)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ChatRequest is the JSON body for POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserInput string `json:"user_input"`
}

// ChatResponse is the JSON response for POST /chat.
type ChatResponse struct {
	Reply     string           `json:"reply"`
	SessionID string           `json:"session_id"`
	History   []domain.Message `json:"history"`
}

// TranscriptEvent is published to NATS after each served turn.
type TranscriptEvent struct {
	SessionID string `json:"session_id"`
	UserInput string `json:"user_input"`
	Reply     string `json:"reply"`
	CTAURL    string `json:"cta_url,omitempty"`
	Model     string `json:"model"`
}

func handleChat(svc *chat.Service, store sessions.Store, nc *nats.Conn, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mChatRequests.Inc()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.UserInput == "" {
			http.Error(w, `{"error":"user_input is required"}`, http.StatusBadRequest)
			return
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = sessions.NewSessionID()
		}
		history, err := store.History(r.Context(), sessionID)
		if err != nil {
			logger.Warn("session history load failed, continuing without", "err", err)
		}

		ans, err := svc.Query(r.Context(), domain.Query{
			SessionID: sessionID,
			Text:      req.UserInput,
			History:   history,
		})
		if err != nil {
			mChatErrors.Inc()
			var vErr *domain.ValidationError
			if errors.As(err, &vErr) {
				http.Error(w, `{"error":"invalid user input"}`, http.StatusBadRequest)
				return
			}
			logger.Error("chat query failed", "err", err)
			http.Error(w, `{"error":"An internal error occurred. Please try again later."}`, http.StatusInternalServerError)
			return
		}

		if ans.CTALayer > 0 {
			mInjections(fmt.Sprintf("%d", ans.CTALayer)).Inc()
		}

		appendTurn(r.Context(), store, sessionID, req.UserInput, ans.Reply, logger)
		history, _ = store.History(r.Context(), sessionID)

		if nc != nil {
			ev := TranscriptEvent{
				SessionID: sessionID,
				UserInput: req.UserInput,
				Reply:     ans.Reply,
				CTAURL:    ans.CTAURL,
				Model:     ans.Model,
			}
			if err := natsutil.Publish(r.Context(), nc, natsutil.SubjectTranscript, ev); err != nil {
				logger.Warn("transcript publish failed", "err", err)
			}
		}

		mChatDuration.Since(start)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			Reply:     ans.Reply,
			SessionID: sessionID,
			History:   history,
		})
	}
}

func appendTurn(ctx context.Context, store sessions.Store, sessionID, userInput, reply string, logger *slog.Logger) {
	if err := store.Append(ctx, sessionID, domain.Message{Role: "human", Content: userInput}); err != nil {
		logger.Warn("session append failed", "err", err)
		return
	}
	if err := store.Append(ctx, sessionID, domain.Message{Role: "ai", Content: reply}); err != nil {
		logger.Warn("session append failed", "err", err)
	}
}

// VoiceProcessRequest carries a transcript pair for reply post-processing.
type VoiceProcessRequest struct {
	UserInput  string `json:"user_input"`
	AIResponse string `json:"ai_response"`
}

func handleVoiceProcess(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VoiceProcessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"processed_response": svc.Process(req.UserInput, req.AIResponse),
		})
	}
}

// ClearChatRequest names the session to clear.
type ClearChatRequest struct {
	SessionID string `json:"session_id"`
}

func handleClearChat(store sessions.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClearChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
			http.Error(w, `{"error":"session_id is required"}`, http.StatusBadRequest)
			return
		}
		if err := store.Clear(r.Context(), req.SessionID); err != nil {
			logger.Error("session clear failed", "err", err)
			http.Error(w, `{"error":"Failed to clear chat history."}`, http.StatusInternalServerError)
			return
		}
		mSessionClears.Inc()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "message": "Chat history cleared."})
	}
}

// --- Adapters ---

// guardedEmbedder routes embedding calls through the circuit breaker so a
// provider outage degrades to empty retrieval instead of piling up timeouts.
type guardedEmbedder struct {
	provider *openai.Client
	breaker  *resilience.Breaker
}

func (g *guardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		vec, err = g.provider.Embed(ctx, text)
		return err
	})
	return vec, err
}
