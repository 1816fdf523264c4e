package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/inkwell-ai/inkwell/pkg/ai"
	"github.com/inkwell-ai/inkwell/pkg/chunk"
	"github.com/inkwell-ai/inkwell/pkg/config"
	"github.com/inkwell-ai/inkwell/pkg/db"
	"github.com/inkwell-ai/inkwell/pkg/enrich"
	"github.com/inkwell-ai/inkwell/pkg/export"
	"github.com/inkwell-ai/inkwell/pkg/extract"
	"github.com/inkwell-ai/inkwell/pkg/gate"
	"github.com/inkwell-ai/inkwell/pkg/metrics"
	"github.com/inkwell-ai/inkwell/pkg/pipeline"
	"github.com/inkwell-ai/inkwell/pkg/server"
	"github.com/inkwell-ai/inkwell/pkg/store"
	"github.com/inkwell-ai/inkwell/pkg/triage"
	"github.com/inkwell-ai/inkwell/pkg/vocabulary"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
		Level:           log.InfoLevel,
	})

	cfg, err := config.LoadConfig(true)
	if err != nil {
		logger.Fatal("loading config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Controlled vocabulary with hot reload.
	vocab := vocabulary.New(logger.With("component", "vocabulary"), cfg.VocabularyPath)
	if err := vocab.Load(); err != nil {
		logger.Warn("vocabulary load failed, starting with empty vocabulary", "error", err)
	}
	go func() {
		if err := vocab.Watch(ctx); err != nil {
			logger.Warn("vocabulary watcher stopped", "error", err)
		}
	}()

	// LLM fallback chain, cheap-fast first per configured order.
	chainProviders := make([]ai.ChainProvider, 0, len(cfg.ProviderChain))
	var firstService *ai.Service
	for _, p := range cfg.ProviderChain {
		service := ai.NewOpenAIService(logger.With("provider", p.Name), p.Name, p.APIKey, p.BaseURL, p.Model)
		if firstService == nil {
			firstService = service
		}
		chainProviders = append(chainProviders, ai.ChainProvider{Service: service, MaxConcurrent: 4})
	}
	if len(chainProviders) == 0 {
		logger.Fatal("no LLM providers configured, set LLM_PROVIDER_CHAIN")
	}
	llmChain := ai.NewFallbackChain(
		logger.With("component", "llm"),
		time.Duration(cfg.LLMTimeoutS)*time.Second,
		chainProviders...,
	)

	embeddings := ai.NewOpenAIService(
		logger.With("component", "embeddings"),
		"embeddings", cfg.EmbeddingsAPIKey, cfg.EmbeddingsAPIURL, cfg.EmbeddingsModel,
	)

	// Vector store.
	weaviateClient, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.WeaviateHost,
		Scheme: cfg.WeaviateScheme,
	})
	if err != nil {
		logger.Fatal("creating weaviate client", "error", err)
	}
	vectorStore := store.NewWeaviateStore(weaviateClient, logger.With("component", "store"))
	if err := vectorStore.EnsureSchemaExists(ctx); err != nil {
		logger.Fatal("ensuring weaviate schema", "error", err)
	}
	if err := vectorStore.WarmFuzzyIndex(ctx); err != nil {
		logger.Warn("fuzzy index warm-up failed, near-duplicate detection degraded", "error", err)
	}

	// Results store.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logger.Fatal("creating database directory", "error", err)
	}
	results, err := db.NewStore(cfg.DBPath)
	if err != nil {
		logger.Fatal("opening results store", "error", err)
	}
	defer func() {
		_ = results.Close()
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	// Pipeline stages.
	extractor := extract.New(logger.With("component", "extract"), extract.Options{
		OCR:                 extract.NewTesseractCLI(cfg.TesseractPath),
		Vision:              firstService,
		VisionModel:         cfg.VisionModel,
		MaxContentChars:     cfg.MaxChunkChars,
		MaxImageExtractions: cfg.MaxImageExtractions,
	})
	triager := triage.New(logger.With("component", "triage"), vectorStore, cfg.FuzzyThreshold)
	enricher := enrich.New(logger.With("component", "enrich"), llmChain, vocab, enrich.Options{
		EnrichmentVersion: cfg.EnrichmentVersion,
		MaxContentChars:   cfg.MaxContentChars,
		RecencyTauDays:    cfg.RecencyTauDays,
		EnableCritic:      cfg.EnableCritic,
	})
	qualityGate := gate.New(cfg.SigmaMin, cfg.EnableGating)
	chunker := chunk.New(logger.With("component", "chunk"), cfg.ChunkTargetTokens, cfg.ChunkMaxTokens)
	exporter := export.New(logger.With("component", "export"), cfg.VaultPath, export.LinkMode(cfg.ExportAutoLink))

	pipelineService := pipeline.NewService(
		logger.With("component", "pipeline"),
		extractor, triager, enricher, qualityGate, chunker,
		vectorStore, exporter, embeddings, results, m,
		pipeline.Options{
			Workers:         cfg.WorkerConcurrency,
			QueueSize:       cfg.IngestQueueSize,
			DocBudget:       time.Duration(cfg.DocBudgetS) * time.Second,
			DocCostBudget:   cfg.DocCostBudget,
			EmbeddingsModel: cfg.EmbeddingsModel,
			MaxChunkChars:   cfg.MaxChunkChars,
		},
	)
	pipelineService.Start(ctx)

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.New(logger.With("component", "http"), pipelineService, registry).Router(),
	}
	go func() {
		logger.Info("starting HTTP server", "address", "http://localhost:"+cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown error", "error", err)
	}
	pipelineService.Stop()
}
