package cli

import (
	"fmt"
	"log/slog"

	"contractrag/config"
	"contractrag/internal/adapter/analyzer"
	"contractrag/internal/adapter/cache"
	"contractrag/internal/adapter/chunker"
	"contractrag/internal/adapter/embedding"
	"contractrag/internal/adapter/memstore"
	"contractrag/internal/adapter/ownerlock"
	"contractrag/internal/adapter/sqlstore"
	"contractrag/internal/adapter/store"
	"contractrag/internal/port"
	"contractrag/internal/usecase"
)

// app wires the configured adapters into the use cases for one command run.
type app struct {
	store  port.ChunkStore
	ingest *usecase.IngestUseCase
	search *usecase.SearchUseCase
}

func openApp(cfg *config.Config, dir string, log *slog.Logger) (*app, error) {
	st, err := openStore(cfg, dir, log)
	if err != nil {
		return nil, err
	}

	tokenizer := analyzer.NewTokenizer(cfg.Embedding.FoldPlurals)
	emb, err := newEmbedder(cfg, tokenizer, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	var qc *cache.QueryCache
	if cfg.Retrieve.CacheSize > 0 {
		qc = cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL)
	}

	chk := chunker.NewClauseChunker(cfg.Ingest.ChunkTokens, cfg.Ingest.MinChunkChars, cfg.Ingest.LinesPerPage, tokenizer)
	return &app{
		store: st,
		ingest: usecase.NewIngestUseCase(st, emb, chk, usecase.IngestOptions{
			BatchSize:   cfg.Embedding.BatchSize,
			Concurrency: cfg.Embedding.Concurrency,
			Cache:       qc,
			Logger:      log,
		}),
		search: usecase.NewSearchUseCase(st, emb, usecase.SearchOptions{
			MaxTopK: cfg.Retrieve.MaxTopK,
			Timeout: cfg.Retrieve.SearchTimeout,
			Cache:   qc,
			Logger:  log,
		}),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func openStore(cfg *config.Config, dir string, log *slog.Logger) (port.ChunkStore, error) {
	if cfg.Store.Backend == "memory" {
		granularity, err := ownerlock.ParseGranularity(cfg.Store.OwnerLockGranularity)
		if err != nil {
			return nil, err
		}
		log.Warn("memory backend selected, chunks are not persisted")
		return memstore.NewMemoryStore(cfg.Store.Dimension, ownerlock.New(granularity)), nil
	}

	if err := config.EnsureDataDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := config.IndexDBPath(dir, cfg.Store.Backend)
	log.Debug("opening chunk store", "backend", cfg.Store.Backend, "path", path, "dimension", cfg.Store.Dimension)

	switch cfg.Store.Backend {
	case "bolt":
		st, err := store.NewBoltChunkStore(path, cfg.Store.Dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		return st, nil
	case "sqlite":
		st, err := sqlstore.Open(path, cfg.Store.Dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	}
	return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
}

// newEmbedder builds the configured embedder. Model-backed providers are
// wrapped so that a failing call degrades to zero vectors instead of
// dropping chunks.
func newEmbedder(cfg *config.Config, tokenizer port.Tokenizer, log *slog.Logger) (port.Embedder, error) {
	dim := cfg.Store.Dimension
	switch cfg.Embedding.Provider {
	case "hash":
		return embedding.NewHashEmbedder(dim, tokenizer), nil
	case "openai":
		emb, err := embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL, dim)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		return embedding.NewFallbackEmbedder(emb, log), nil
	case "ollama":
		emb := embedding.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL, dim)
		return embedding.NewFallbackEmbedder(emb, log), nil
	}
	return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
}
