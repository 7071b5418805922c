// Ragd is a retrieval-augmented generation daemon.
//
// It ingests documents through a durable Temporal pipeline (split, embed,
// index), serves grounded answers with citations over HTTP, and evaluates
// answer quality against a fixed question set.
//
// Configuration is loaded from a YAML file and environment variables. See
// internal/config for details.
//
// Usage:
//
//	# Start with defaults (expects Temporal and Qdrant on localhost)
//	ragd
//
//	# Configure via environment
//	SERVER_PORT=9090 STORE_BACKEND=chromem ragd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tmc/langchaingo/llms/openai"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/answer"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/eval"
	ragdhttp "github.com/fyrsmithlabs/ragd/internal/http"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
	"github.com/fyrsmithlabs/ragd/internal/splitter"
	"github.com/fyrsmithlabs/ragd/internal/telemetry"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
	"github.com/fyrsmithlabs/ragd/internal/workflows"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/ragd/config.yaml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ragd\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// run initializes all dependencies and blocks until context cancellation.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "ragd",
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting ragd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("store_backend", cfg.Store.Backend),
	)

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:         cfg.Telemetry.Enabled,
		Endpoint:        cfg.Telemetry.Endpoint,
		Protocol:        cfg.Telemetry.Protocol,
		Insecure:        cfg.Telemetry.Insecure,
		ServiceName:     cfg.Telemetry.ServiceName,
		ServiceVersion:  cfg.Telemetry.ServiceVersion,
		SampleRate:      cfg.Telemetry.SampleRate,
		ExportInterval:  cfg.Telemetry.ExportInterval,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	store, err := newStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize vector store: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()
	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimension:  cfg.Embedding.Dimension,
		APIKey:     cfg.Embedding.APIKey.Value(),
		BatchSize:  cfg.Embedding.BatchSize,
		MaxRetries: cfg.Embedding.MaxRetries,
	}, logger.Named("embeddings"))
	if err != nil {
		return fmt.Errorf("initialize embedding service: %w", err)
	}

	sp, err := splitter.New(splitter.Config{
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
	})
	if err != nil {
		return fmt.Errorf("initialize splitter: %w", err)
	}

	catalog := document.NewCatalog()

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.NewTemporalAdapter(logger.Named("temporal")),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal at %s: %w", cfg.Temporal.HostPort, err)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.IngestDocumentWorkflow)
	w.RegisterActivity(workflows.NewActivities(sp, embedder, store, catalog, logger.Named("pipeline")))
	if err := w.Start(); err != nil {
		return fmt.Errorf("start ingestion worker: %w", err)
	}
	defer w.Stop()

	logger.Info(ctx, "ingestion worker started",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("temporal", cfg.Temporal.HostPort),
	)

	engine, err := retrieval.NewEngine(embedder, store,
		retrieval.Config{TopK: cfg.Retrieval.TopK},
		catalog.Visible,
		logger.Named("retrieval"),
	)
	if err != nil {
		return fmt.Errorf("initialize retrieval engine: %w", err)
	}

	synth, err := answer.NewSynthesizer(answer.Config{
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		APIKey:      cfg.Generation.APIKey.Value(),
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		MaxRetries:  cfg.Generation.MaxRetries,
	}, logger.Named("answer"))
	if err != nil {
		return fmt.Errorf("initialize answer synthesizer: %w", err)
	}

	judge, err := newJudgeModel(cfg)
	if err != nil {
		return fmt.Errorf("initialize judge model: %w", err)
	}
	harness := eval.NewHarness(engine, synth, judge,
		eval.Config{OutputDir: cfg.Eval.OutputDir},
		logger.Named("eval"),
	)

	srv, err := ragdhttp.NewServer(
		catalog,
		store,
		workflows.NewIngestor(temporalClient, cfg.Temporal.TaskQueue,
			workflows.EmbedBatchFor(cfg.Embedding.BatchSize, cfg.Embedding.Dimension)),
		engine,
		synth,
		harness,
		logger.Named("http"),
		ragdhttp.Config{Host: cfg.Server.Host, Port: cfg.Server.Port},
	)
	if err != nil {
		return fmt.Errorf("initialize http server: %w", err)
	}
	srv.UseMetrics(ragdhttp.NewHTTPMetrics(logger.Underlying()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// newStore builds the configured vector store backend. Qdrant is the
// production backend; chromem is an embedded store for single-node setups
// without external infrastructure.
func newStore(cfg *config.Config, logger *logging.Logger) (vectorstore.Store, error) {
	switch cfg.Store.Backend {
	case "chromem":
		return vectorstore.NewChromemStore(vectorstore.ChromemConfig{
			Path:       cfg.Store.Path,
			Collection: cfg.Store.Collection,
			Dimension:  cfg.Embedding.Dimension,
		}, logger.Named("vectorstore"))
	case "qdrant", "":
		return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			UseTLS:     cfg.Qdrant.UseTLS,
			APIKey:     cfg.Qdrant.APIKey.Value(),
			Collection: cfg.Store.Collection,
			Dimension:  cfg.Embedding.Dimension,
		}, logger.Named("vectorstore"))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// newJudgeModel builds the chat model the evaluation harness scores with.
// It reuses the generation endpoint and model.
func newJudgeModel(cfg *config.Config) (*openai.LLM, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Generation.Model),
	}
	if cfg.Generation.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Generation.BaseURL))
	}
	if key := cfg.Generation.APIKey.Value(); key != "" {
		opts = append(opts, openai.WithToken(key))
	} else {
		opts = append(opts, openai.WithToken("placeholder"))
	}
	return openai.New(opts...)
}
