package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/classification"
	"github.com/jonathan/talent-sourcer/internal/config"
	"github.com/jonathan/talent-sourcer/internal/db"
	"github.com/jonathan/talent-sourcer/internal/discovery"
	"github.com/jonathan/talent-sourcer/internal/enrichment"
	"github.com/jonathan/talent-sourcer/internal/fetch"
	"github.com/jonathan/talent-sourcer/internal/funnel"
	"github.com/jonathan/talent-sourcer/internal/ingestion"
	"github.com/jonathan/talent-sourcer/internal/learning"
	"github.com/jonathan/talent-sourcer/internal/llm"
	"github.com/jonathan/talent-sourcer/internal/memstore"
	"github.com/jonathan/talent-sourcer/internal/notify"
	"github.com/jonathan/talent-sourcer/internal/pipeline"
	"github.com/jonathan/talent-sourcer/internal/scoring"
	"github.com/jonathan/talent-sourcer/internal/seed"
	"github.com/jonathan/talent-sourcer/internal/server"
	"github.com/jonathan/talent-sourcer/internal/teammatch"
)

// backend is the persistence every service shares. Both the PostgreSQL store and the in-memory
// store satisfy it.
type backend interface {
	pipeline.Store
	learning.Store
	teammatch.Store
	funnel.Store
	funnel.ClaimStore
	server.Store
	ingestion.JobStore
}

var (
	_ backend = (*db.DB)(nil)
	_ backend = (*memstore.Store)(nil)
)

// app holds the wired services for one command invocation.
type app struct {
	store    backend
	jobs     *ingestion.Service
	funnel   *funnel.Service
	engine   *learning.Engine
	pipeline *pipeline.Orchestrator
	matcher  *teammatch.Matcher

	closers []func()
}

// Close releases the model clients and the database pool.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openStore connects to PostgreSQL, or returns an empty in-memory store with --memory.
func openStore(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	if useMemory {
		logger.Warn("using in-memory store; nothing will be persisted")
		return memstore.New(), func() {}, nil
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required (or pass --memory)")
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, database.Close, nil
}

// newApp wires every service from the loaded configuration. Without a model API key the
// adapters fall back to their labelled stubs.
func newApp(ctx context.Context) (*app, error) {
	cfg := appConfig
	a := &app{}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	var client llm.Client
	var embedder llm.Embedder
	if cfg.LLM.Enabled() {
		c, err := llm.NewClient(ctx, cfg.LLM.ModelConfig(), cfg.LLM.APIKey())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		client = c
		a.closers = append(a.closers, func() { _ = c.Close() })
		logger.Info("model configured",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("standard", c.GetModel(llm.TierStandard)))
		if e, ok := c.(llm.Embedder); ok {
			embedder = e
		}
	} else {
		logger.Warn("no model API key configured; topics, classification and scoring use stubs")
	}
	if embedder == nil && cfg.LLM.GeminiAPIKey != "" {
		// Only Gemini serves embeddings.
		g, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.LLM.GeminiAPIKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create embedding client: %w", err)
		}
		embedder = g
		a.closers = append(a.closers, func() { _ = g.Close() })
	}

	dir, err := loadDirectory(cfg.Enrichment.ProfilesPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	fetcher := fetch.NewFetcher(&fetch.FetcherConfig{UseBrowser: cfg.Enrichment.UseBrowser}, logger)
	var homepage enrichment.HomepageReader
	if cfg.Enrichment.FetchHomepages {
		homepage = fetcher
	}

	timeout := cfg.Adapters.Timeout
	dispatcher := notify.NewLogDispatcher(logger)

	a.jobs = ingestion.NewService(store, fetcher, ingestion.NewExtractor(client, timeout, logger), logger)
	a.funnel = funnel.NewService(store, logger, funnel.NewTakehomeHook(store, dispatcher, timeout, logger))
	a.engine = learning.NewEngine(store, logger, learning.WithLearningRate(cfg.Learning.LearningRate))
	a.pipeline = pipeline.New(pipeline.Config{
		Store:        store,
		Embedder:     embedder,
		EmbedTimeout: timeout,
		Topics:       discovery.NewTopicDiscoverer(client, timeout, logger),
		Profiles:     discovery.NewSignalSource(discovery.SearchConfig{
			BearerToken:    cfg.Discovery.BearerToken,
			MaxResults:     cfg.Discovery.MaxResults,
			QueriesPerRun:  cfg.Discovery.QueriesPerRun,
			RequestsPerSec: cfg.Discovery.RequestsPerSec,
			Timeout:        timeout,
		}, nil, logger),
		Classifier: classification.NewRoleClassifier(client, timeout, logger),
		Enricher:   enrichment.NewEnricher(dir, homepage, logger),
		Scorer:     scoring.NewCompatibilityScorer(client, timeout, logger),
		Router:     a.engine,
		Hooks:      a.funnel,
		Agent:      cfg.Learning.Agent,
		Logger:     logger,
	})

	var refiner teammatch.Refiner
	if client != nil {
		refiner = teammatch.NewReasoner(client, cfg.Adapters.ReasoningTimeout, logger)
	}
	a.matcher = teammatch.NewMatcher(store, embedder, refiner, dispatcher, timeout, logger)
	return a, nil
}

func loadDirectory(path string) (*enrichment.Directory, error) {
	if path == "" {
		return enrichment.NewDirectory(nil), nil
	}
	f, err := seed.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile directory: %w", err)
	}
	logger.Info("loaded profile directory", zap.String("path", path), zap.Int("profiles", len(f.Profiles)))
	return enrichment.NewDirectory(f.Profiles), nil
}
