package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"contractrag/internal/adapter/cache"
	"contractrag/internal/domain"
	"contractrag/internal/port"
)

const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// IngestOptions configures an IngestUseCase. Zero values select defaults.
type IngestOptions struct {
	BatchSize   int
	Concurrency int
	Cache       *cache.QueryCache
	Logger      *slog.Logger
}

// IngestUseCase embeds parsed document chunks and stores them under their
// owner.
type IngestUseCase struct {
	store       port.ChunkStore
	embedder    port.Embedder
	chunker     port.Chunker
	cache       *cache.QueryCache
	batchSize   int
	concurrency int
	logger      *slog.Logger
	newID       func() string
	now         func() time.Time
}

// IngestResult contains the results of an ingest operation.
type IngestResult struct {
	DocumentID string
	Chunks     int
}

// NewIngestUseCase creates a new ingest use case. chunker may be nil when
// only pre-chunked input is ingested.
func NewIngestUseCase(store port.ChunkStore, embedder port.Embedder, chunker port.Chunker, opts IngestOptions) *IngestUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &IngestUseCase{
		store:       store,
		embedder:    embedder,
		chunker:     chunker,
		cache:       opts.Cache,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// Ingest embeds inputs and stores them as chunks of doc. A missing document
// ID is generated and returned in the result.
func (u *IngestUseCase) Ingest(ctx context.Context, owner domain.OwnerID, doc domain.Document, inputs []domain.ChunkInput) (*IngestResult, error) {
	if owner == "" {
		return nil, domain.ErrEmptyOwner
	}
	if doc.OwnerID == "" {
		doc.OwnerID = owner
	}
	if doc.OwnerID != owner {
		return nil, &domain.OwnerError{Expected: owner, Got: doc.OwnerID}
	}
	if doc.ID == "" {
		doc.ID = u.newID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = u.now().UTC()
	}
	if doc.Status == "" {
		doc.Status = domain.StatusActive
	}

	texts := make([]string, len(inputs))
	for i, in := range inputs {
		texts[i] = in.Text
	}
	vectors, err := u.embedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks of %s: %w", doc.ID, err)
	}

	chunks := make([]domain.Chunk, len(inputs))
	for i, in := range inputs {
		chunks[i] = domain.Chunk{
			ID:         u.newID(),
			DocumentID: doc.ID,
			OwnerID:    owner,
			Text:       in.Text,
			Embedding:  vectors[i],
			Metadata:   domain.CloneMetadata(in.Metadata),
		}
	}

	n, err := u.store.Insert(ctx, owner, doc, chunks)
	if err != nil {
		return nil, fmt.Errorf("store chunks of %s: %w", doc.ID, err)
	}
	u.invalidate(owner)

	u.logger.Info("document ingested", "owner", owner, "document", doc.ID, "name", doc.Name, "chunks", n)
	return &IngestResult{DocumentID: doc.ID, Chunks: n}, nil
}

// IngestText splits text into clause chunks and ingests them.
func (u *IngestUseCase) IngestText(ctx context.Context, owner domain.OwnerID, doc domain.Document, text string) (*IngestResult, error) {
	if u.chunker == nil {
		return nil, fmt.Errorf("ingest text: no chunker configured")
	}
	inputs, err := u.chunker.Chunk(doc, text)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", doc.Name, err)
	}
	return u.Ingest(ctx, owner, doc, inputs)
}

// DeleteDocument removes a document of owner with all its chunks.
func (u *IngestUseCase) DeleteDocument(ctx context.Context, owner domain.OwnerID, documentID string) (int, error) {
	if owner == "" {
		return 0, domain.ErrEmptyOwner
	}
	n, err := u.store.DeleteDocument(ctx, owner, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete document %s: %w", documentID, err)
	}
	if n > 0 {
		u.invalidate(owner)
	}
	u.logger.Info("document deleted", "owner", owner, "document", documentID, "chunks", n)
	return n, nil
}

// embedAll embeds texts in batches, running up to concurrency batches at
// once. Output order matches input order.
func (u *IngestUseCase) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for start := 0; start < len(texts); start += u.batchSize {
		end := min(start+u.batchSize, len(texts))
		g.Go(func() error {
			batch, err := u.embedder.Embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(batch) != end-start {
				return fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbeddingFailure, len(batch), end-start)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (u *IngestUseCase) invalidate(owner domain.OwnerID) {
	if u.cache != nil {
		u.cache.Invalidate(owner)
	}
}
