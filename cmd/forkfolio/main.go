// Package main implements the entry point for the forkfolio service.
// Forkfolio ingests raw recipe text into structured, deduplicated records
// and serves semantic recipe search with LLM reranking.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/virajxp1/forkfolio/config"
	"github.com/virajxp1/forkfolio/dedupe"
	"github.com/virajxp1/forkfolio/ingest"
	"github.com/virajxp1/forkfolio/llm"
	"github.com/virajxp1/forkfolio/metric"
	"github.com/virajxp1/forkfolio/natsclient"
	"github.com/virajxp1/forkfolio/pkg/cache"
	"github.com/virajxp1/forkfolio/pkg/embedding"
	"github.com/virajxp1/forkfolio/recipestore"
	"github.com/virajxp1/forkfolio/rerank"
	"github.com/virajxp1/forkfolio/service"
	"github.com/virajxp1/forkfolio/vectorstore"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "forkfolio"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting forkfolio",
		"version", Version,
		"config_path", cliCfg.ConfigPath)

	cfg, err := config.LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()
	registry := metric.NewRegistry()

	natsClient, err := connectNATS(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx) //nolint:errcheck // shutdown path

	svc, bulk, err := buildService(ctx, cfg, natsClient, registry, logger)
	if err != nil {
		return err
	}

	return runWithSignalHandling(ctx, svc, bulk, cliCfg.ShutdownTimeout)
}

// connectNATS creates the NATS client and waits for the connection.
func connectNATS(ctx context.Context, cfg *config.Config, registry *metric.Registry, logger *slog.Logger) (*natsclient.Client, error) {
	natsClient, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithName(appName),
		natsclient.WithLogger(logger),
		natsclient.WithCoreMetrics(registry.CoreMetrics()))
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS")
	if err := natsClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}

	return natsClient, nil
}

// buildService wires stores, providers, the dedupe gate, the reranker, and
// the ingestion pipeline into the HTTP recipe service.
func buildService(
	ctx context.Context,
	cfg *config.Config,
	natsClient *natsclient.Client,
	registry *metric.Registry,
	logger *slog.Logger,
) (*service.RecipeService, *ingest.BulkIngestor, error) {
	recipes, err := recipestore.NewStore(ctx, natsClient)
	if err != nil {
		return nil, nil, fmt.Errorf("create recipe store: %w", err)
	}
	vectors, err := vectorstore.NewStore(ctx, natsClient)
	if err != nil {
		return nil, nil, fmt.Errorf("create vector store: %w", err)
	}

	embedder, err := buildEmbedder(cfg, registry, logger)
	if err != nil {
		return nil, nil, err
	}

	judge, err := buildJudge(cfg, registry, logger)
	if err != nil {
		return nil, nil, err
	}

	gate, err := dedupe.NewGate(cfg.Dedupe, embedder, vectors, recipes, judge,
		dedupe.WithMetrics(registry.CoreMetrics()),
		dedupe.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("create dedupe gate: %w", err)
	}

	reranker, err := rerank.New(cfg.Search.Rerank, judge,
		rerank.WithPreviews(recipes),
		rerank.WithMetrics(registry.CoreMetrics()),
		rerank.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("create reranker: %w", err)
	}

	pipeline, err := ingest.NewPipeline(judge, gate, recipes, vectors, embedder,
		ingest.WithMetrics(registry.CoreMetrics()),
		ingest.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("create ingestion pipeline: %w", err)
	}

	bulk := ingest.NewBulkIngestor(pipeline, ingest.BulkConfig{
		Workers:   cfg.Ingest.Workers,
		QueueSize: cfg.Ingest.QueueSize,
	}, registry, logger)

	svc, err := service.NewRecipeService(cfg, service.Dependencies{
		NATSClient: natsClient,
		Registry:   registry,
		Logger:     logger,
		Recipes:    recipes,
		Vectors:    vectors,
		Embedder:   embedder,
		Reranker:   reranker,
		Ingestor:   pipeline,
		Bulk:       bulk,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create recipe service: %w", err)
	}

	return svc, bulk, nil
}

// buildEmbedder creates the configured embedding provider wrapped in the
// embedding cache.
func buildEmbedder(cfg *config.Config, registry *metric.Registry, logger *slog.Logger) (embedding.Embedder, error) {
	var provider embedding.Embedder

	switch cfg.Embedding.Provider {
	case "openai":
		openaiEmbedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			APIKey:     cfg.Embedding.APIKey,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout.Std(),
		})
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		provider = openaiEmbedder
	default:
		provider = embedding.NewBM25Embedder(embedding.BM25Config{
			Dimensions: cfg.Embedding.Dimensions,
		})
	}

	embeddingCache, err := cache.NewFromConfig(cfg.Caches.Embedding.Cache(),
		cache.WithMetrics[[]float32](registry, "embedding_cache"))
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return embedding.NewCachedEmbedder(provider, embeddingCache, logger), nil
}

// buildJudge creates the structured-output chat client wrapped in the
// judgment cache.
func buildJudge(cfg *config.Config, registry *metric.Registry, logger *slog.Logger) (llm.Client, error) {
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout.Std(),
	})
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	judgmentCache, err := cache.NewFromConfig(cfg.Caches.Judgment.Cache(),
		cache.WithMetrics[json.RawMessage](registry, "judgment_cache"))
	if err != nil {
		return nil, fmt.Errorf("create judgment cache: %w", err)
	}

	return llm.NewCachedClient(client, judgmentCache, logger), nil
}

// runWithSignalHandling starts the service and handles shutdown signals.
func runWithSignalHandling(ctx context.Context, svc *service.RecipeService, bulk *ingest.BulkIngestor, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := bulk.Start(signalCtx); err != nil {
		return fmt.Errorf("start bulk ingestor: %w", err)
	}
	if err := svc.Start(signalCtx); err != nil {
		return fmt.Errorf("start recipe service: %w", err)
	}
	slog.Info("Forkfolio started")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := svc.Stop(shutdownTimeout); err != nil {
		slog.Error("Error stopping recipe service", "error", err)
	}
	if err := bulk.Stop(shutdownTimeout); err != nil {
		slog.Error("Error stopping bulk ingestor", "error", err)
	}

	slog.Info("Forkfolio shutdown complete")
	return nil
}
