package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"kbgate/internal/ai"
	"kbgate/internal/channels"
	"kbgate/internal/channels/telegram"
	"kbgate/internal/chunker"
	"kbgate/internal/config"
	"kbgate/internal/crawler"
	"kbgate/internal/embedder"
	"kbgate/internal/engine"
	"kbgate/internal/gateway"
	"kbgate/internal/loader"
	"kbgate/internal/memory"
	"kbgate/internal/scheduler"
	"kbgate/internal/vectorstore"
)

// app wires the configured components together.
type app struct {
	cfg      *config.Config
	store    *vectorstore.Store
	memory   *memory.Store
	engine   *engine.Engine
	ingestor *engine.Ingestor
	gateway  *gateway.Gateway
	channels *channels.Manager
	sched    *scheduler.Scheduler
}

// newApp builds every component from the configuration file.
func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	store, err := vectorstore.Open(cfg.Storage.VectorPath)
	if err != nil {
		return nil, err
	}

	mem, err := memory.Open(cfg.Storage.MemoryPath, cfg.Memory.MaxTurns)
	if err != nil {
		store.Close()
		return nil, err
	}

	emb, err := buildEmbedder(cfg)
	if err != nil {
		store.Close()
		mem.Close()
		return nil, err
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		store.Close()
		mem.Close()
		return nil, err
	}

	eng := engine.New(store, mem, emb, provider, engine.Config{
		MaxTokens:    cfg.AI.MaxTokens,
		HistoryTurns: cfg.Memory.HistoryTurns,
	})

	crawl := crawler.New(buildFetcher(cfg), crawler.Config{
		MaxDepth: cfg.Ingest.CrawlDepth,
		MaxPages: cfg.Ingest.CrawlPages,
		Delay:    cfg.Ingest.CrawlDelay(),
	})
	ingestor := engine.NewIngestor(
		loader.New(),
		crawl,
		chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		emb,
		store,
	)

	a := &app{
		cfg:      cfg,
		store:    store,
		memory:   mem,
		engine:   eng,
		ingestor: ingestor,
		gateway:  gateway.New(cfg, eng, ingestor),
	}

	a.channels = channels.NewManager(eng, buildAdapters(cfg)...)
	if cfg.Schedule.Enabled {
		a.sched = scheduler.New(ingestor, cfg.Tenants)
	}

	return a, nil
}

// Start launches the channels and the scheduler. The HTTP gateway is
// started separately because it blocks.
func (a *app) Start(ctx context.Context) error {
	if err := a.channels.Start(ctx); err != nil {
		return err
	}
	if a.sched != nil {
		if err := a.sched.Start(ctx, a.cfg.Schedule.Cron); err != nil {
			return err
		}
	}
	return nil
}

// Stop shuts everything down in reverse order.
func (a *app) Stop(ctx context.Context) error {
	if a.sched != nil {
		a.sched.Stop()
	}
	a.channels.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return a.gateway.Shutdown(shutdownCtx)
}

// Close releases the databases.
func (a *app) Close() {
	if err := a.memory.Close(); err != nil {
		log.Printf("[Main] closing memory store: %v", err)
	}
	if err := a.store.Close(); err != nil {
		log.Printf("[Main] closing vector store: %v", err)
	}
}

func buildEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "hash":
		return embedder.NewHash(cfg.Embedding.Dims), nil
	case "openai":
		return embedder.NewOpenAI(embedder.OpenAIConfig{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.Embedding.APIKey,
			Model:   cfg.Embedding.Model,
			Dims:    cfg.Embedding.Dims,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Embedding.Provider)
	}
}

func buildProvider(cfg *config.Config) (ai.Provider, error) {
	switch cfg.AI.Provider {
	case "anthropic":
		return ai.NewAnthropicProvider("anthropic", cfg.AI.APIKey, cfg.AI.Model)
	case "openai":
		return ai.NewOpenAIProvider("openai", cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL)
	case "mock":
		return ai.NewMockProvider("mock"), nil
	default:
		return nil, fmt.Errorf("unknown ai provider: %q", cfg.AI.Provider)
	}
}

func buildFetcher(cfg *config.Config) crawler.Fetcher {
	if cfg.Ingest.Fetcher == "chrome" {
		return crawler.NewChromeFetcher(0)
	}
	return crawler.NewHTTPFetcher(30 * time.Second)
}

func buildAdapters(cfg *config.Config) []channels.Adapter {
	var adapters []channels.Adapter
	for i, ch := range cfg.Channels {
		if !ch.Enabled {
			continue
		}
		switch ch.Type {
		case "telegram":
			id := fmt.Sprintf("telegram-%d", i)
			adapters = append(adapters, telegram.New(id, telegram.Config{
				BotToken: ch.Token,
				TenantID: ch.TenantID,
			}))
		}
	}
	return adapters
}
