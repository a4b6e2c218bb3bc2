package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"contractrag/internal/adapter/cache"
	"contractrag/internal/adapter/similarity"
	"contractrag/internal/adapter/topk"
	"contractrag/internal/domain"
	"contractrag/internal/port"
)

const (
	DefaultMaxTopK = 100

	// cancelCheckInterval is how many candidates are scored between checks
	// of the context.
	cancelCheckInterval = 256
)

// SearchOptions configures a SearchUseCase. Zero values select defaults.
type SearchOptions struct {
	MaxTopK int
	Timeout time.Duration
	Cache   *cache.QueryCache
	Logger  *slog.Logger
}

// SearchUseCase ranks an owner's chunks by cosine similarity to a query.
// Only the owner's partition is ever scanned.
type SearchUseCase struct {
	store    port.ChunkStore
	embedder port.Embedder
	cache    *cache.QueryCache
	maxTopK  int
	timeout  time.Duration
	logger   *slog.Logger
}

var _ port.Searcher = (*SearchUseCase)(nil)

// NewSearchUseCase creates a new search use case.
func NewSearchUseCase(store port.ChunkStore, embedder port.Embedder, opts SearchOptions) *SearchUseCase {
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = DefaultMaxTopK
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SearchUseCase{
		store:    store,
		embedder: embedder,
		cache:    opts.Cache,
		maxTopK:  opts.MaxTopK,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}
}

// EffectiveTopK clamps a requested k to [0, MaxTopK].
func (u *SearchUseCase) EffectiveTopK(k int) int {
	if k <= 0 {
		return 0
	}
	return min(k, u.maxTopK)
}

// Search embeds query and returns the owner's k most similar chunks.
func (u *SearchUseCase) Search(ctx context.Context, owner domain.OwnerID, query string, k int) (*domain.SearchResponse, error) {
	if owner == "" {
		return nil, domain.ErrEmptyOwner
	}
	k = u.EffectiveTopK(k)
	resp := &domain.SearchResponse{Owner: owner, Query: query, TopK: k, Results: []domain.SearchResult{}}
	if k == 0 {
		return resp, nil
	}

	var gen uint64
	if u.cache != nil {
		gen = u.cache.Generation(owner)
		if results, ok := u.cache.Get(owner, query, k); ok {
			u.logger.Debug("search cache hit", "owner", owner, "k", k)
			resp.Results = results
			return resp, nil
		}
	}

	ctx, cancel := u.withTimeout(ctx)
	defer cancel()

	vectors, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrSearchCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("embed query: %w", errors.Join(domain.ErrEmbeddingFailure, err))
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: %w: got %d vectors", domain.ErrEmbeddingFailure, len(vectors))
	}

	results, err := u.rank(ctx, owner, vectors[0], k)
	if err != nil {
		return nil, err
	}
	resp.Results = results

	if u.cache != nil {
		u.cache.Put(owner, query, k, gen, results)
	}
	u.logger.Debug("search completed", "owner", owner, "k", k, "results", len(results))
	return resp, nil
}

// SearchVector ranks the owner's chunks against a precomputed query vector,
// which must have the store's dimension.
func (u *SearchUseCase) SearchVector(ctx context.Context, owner domain.OwnerID, vector []float32, k int) ([]domain.SearchResult, error) {
	if owner == "" {
		return nil, domain.ErrEmptyOwner
	}
	k = u.EffectiveTopK(k)
	if k == 0 {
		return []domain.SearchResult{}, nil
	}

	ctx, cancel := u.withTimeout(ctx)
	defer cancel()
	return u.rank(ctx, owner, vector, k)
}

func (u *SearchUseCase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.timeout > 0 {
		return context.WithTimeout(ctx, u.timeout)
	}
	return context.WithCancel(ctx)
}

func (u *SearchUseCase) rank(ctx context.Context, owner domain.OwnerID, query []float32, k int) ([]domain.SearchResult, error) {
	if err := domain.ValidateVector(query, u.store.Dimension()); err != nil {
		return nil, fmt.Errorf("query vector: %w", err)
	}

	chunks, err := u.store.Scan(ctx, owner)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrSearchCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("scan owner %s: %w", owner, err)
	}

	queryNorm := similarity.Norm(query)
	candidates := make([]topk.Candidate, len(chunks))
	for i, c := range chunks {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrSearchCancelled, err)
			}
		}
		score := similarity.CosineWithNorms(query, c.Embedding, queryNorm, similarity.Norm(c.Embedding))
		candidates[i] = topk.Candidate{Index: i, Score: score}
	}

	best := topk.Select(candidates, k)
	results := make([]domain.SearchResult, len(best))
	for i, cand := range best {
		c := chunks[cand.Index]
		results[i] = domain.SearchResult{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
			Metadata:   domain.CloneMetadata(c.Metadata),
			Score:      cand.Score,
		}
	}
	return results, nil
}
