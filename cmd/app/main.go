package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invoice-ai-extraction/internal/config"
	"invoice-ai-extraction/internal/domain/ports/adapter"
	"invoice-ai-extraction/internal/extraction"
	aiAdapters "invoice-ai-extraction/internal/infra/adapters/ai"
	"invoice-ai-extraction/internal/infra/api"
	pg "invoice-ai-extraction/internal/infra/db/postgres"
	"invoice-ai-extraction/internal/infra/logging"
	"invoice-ai-extraction/internal/infra/metrics"
	"invoice-ai-extraction/internal/infra/pdf"
	red "invoice-ai-extraction/internal/infra/redis"
	"invoice-ai-extraction/internal/infra/stream"
	"invoice-ai-extraction/internal/infra/worker"
	"invoice-ai-extraction/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop AI fallback)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	txm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	dictCache := red.NewDictionaryCache(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	jobRepo := pg.NewJobRepo(pool)
	docRepo := pg.NewDocumentRepo(pool)
	resultRepo := pg.NewResultRepo(pool, txm)
	synonymRepo := pg.NewSynonymRepo(pool)
	chatRepo := pg.NewChatHistoryRepo(pool)

	// ---- AI adapter (OpenAI -> Gemini -> noop in dev) ----
	var ai adapter.AIServiceAdapter
	switch {
	case cfg.AI.OpenAIKey != "":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: OpenAI")
	case cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: Gemini")
	case cfg.Runtime.Dev:
		ai = &aiAdapters.NoopAdapter{}
		logger.Warn().Msg("AI adapter: noop (dev mode, no provider configured)")
	default:
		logger.Fatal().Msgf("no AI provider configured: set ai.openai_key or ai.gemini_key in %s", *cfgPath)
	}

	// ---- Pipeline ----
	textExtractor := pdf.NewExtractor(logger)
	candidateExtractor := extraction.NewExtractor(ai, cfg.AI.DefaultModel, cfg.AI.Timeout, cfg.AI.PromptTokenBudget, logger)

	hub := stream.NewHub(logger)
	publisher := usecase.NewResultPublisher(resultRepo, hub, logger)

	pool2 := worker.NewPool(cfg.Pipeline.Workers, logger)
	pool2.Start(ctx)
	defer pool2.Stop()

	// ---- Use cases ----
	synonymUC := usecase.NewSynonymUseCase(synonymRepo, dictCache, logger)
	ingestUC := usecase.NewIngestUseCase(jobRepo, docRepo, txm, textExtractor, candidateExtractor, synonymUC, publisher, pool2, cfg.Pipeline.AbortOnFailure, logger)
	queryUC := usecase.NewQueryUseCase(resultRepo, chatRepo, ai, cfg.AI.DefaultModel, cfg.Chat.HistoryTurns, cfg.AI.Timeout, logger)

	// ---- HTTP ----
	srv := api.NewServer(ingestUC, queryUC, synonymUC, publisher, rateLimiter, cfg.Chat.RateLimit, cfg.Chat.RateLimitWindow, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
