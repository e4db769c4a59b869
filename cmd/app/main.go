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

	"graph-ingestion/internal/config"
	"graph-ingestion/internal/domain/ports/adapter"
	"graph-ingestion/internal/infra/ai"
	"graph-ingestion/internal/infra/graph"
	"graph-ingestion/internal/infra/jobstore"
	"graph-ingestion/internal/infra/logging"
	"graph-ingestion/internal/infra/metrics"
	red "graph-ingestion/internal/infra/redis"
	"graph-ingestion/internal/infra/sched"
	"graph-ingestion/internal/infra/web"
	"graph-ingestion/internal/infra/worker"
	"graph-ingestion/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no redaction)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Credential catalog + pool ----
	catalog, err := ai.LoadCatalog(cfg.AI.CredentialsCSV, cfg.AI.ModelConfig)
	if err != nil {
		log.Fatalf("credential catalog: %v", err)
	}
	logger.Info().Int("credentials", len(catalog.Credentials)).Int("categories", len(catalog.Categories)).Msg("credential catalog loaded")
	for _, c := range catalog.Credentials {
		logger.Debug().Str("credential", logging.Redact(string(c), cfg.Runtime.Dev)).Msg("credential registered")
	}
	pool := ai.NewPool(catalog, cfg.AI.Cooldown(), logger)

	// ---- Transport ----
	var transport adapter.GenerationTransport
	switch cfg.AI.Provider {
	case "openai-compatible":
		transport = ai.NewOpenAICompatTransport(cfg.AI.BaseURL)
		logger.Info().Str("base_url", cfg.AI.BaseURL).Msg("transport: OpenAI-compatible")
	default:
		transport = ai.NewGeminiTransport(cfg.AI.BaseURL)
		logger.Info().Msg("transport: Gemini")
	}

	// ---- Dispatcher ----
	usageTracker := ai.NewUsageTracker()
	dispatcher := ai.NewDispatcher(pool, transport, usageTracker, ai.DispatcherOptions{
		MaxAttempts:       cfg.AI.MaxAttempts,
		BaseBackoff:       cfg.AI.BaseBackoff(),
		MaxBackoff:        cfg.AI.MaxBackoff(),
		DelayBetweenCalls: cfg.AI.DelayBetweenCalls(),
	}, logger)
	dispatcher.Start(ctx)

	// ---- Job store ----
	store, err := jobstore.NewStore(cfg.Queue.Path, logger)
	if err != nil {
		log.Fatalf("job store: %v", err)
	}

	// ---- Redis (optional, submission rate limiting) ----
	var limiter *red.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
	}

	// ---- Use cases + processor ----
	ingestUC := usecase.NewIngestionUseCase(store, logger)
	processor := usecase.NewEpisodeProcessor(dispatcher, graph.NewNoopWriter(logger), cfg.AI.Temperature, logger)

	// ---- Orchestrator ----
	orch := worker.NewOrchestrator(store, processor, cfg.Queue.PollInterval(), cfg.Queue.PostSuccessDelay(), cfg.Queue.MaxContentRetries, logger)
	go orch.Run(ctx)

	// ---- Usage reset worker ----
	usageWorker := sched.NewUsageResetWorker(usageTracker, logger)
	go func() { _ = usageWorker.Run(ctx) }()

	// ---- HTTP server ----
	srv := web.NewServer(ingestUC, limiter, cfg.Redis, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	cancel()
	dispatcher.Shutdown()
	logger.Info().Msg("shutdown complete")
}
