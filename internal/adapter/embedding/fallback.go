package embedding

import (
	"context"
	"errors"
	"log/slog"

	"contractrag/internal/domain"
	"contractrag/internal/port"
)

// FallbackEmbedder substitutes the zero vector for any text the wrapped
// embedder cannot embed, so ingestion never drops a chunk and a query always
// has a vector. Only context cancellation is passed through as an error.
type FallbackEmbedder struct {
	next   port.Embedder
	logger *slog.Logger
}

var _ port.Embedder = (*FallbackEmbedder)(nil)

func NewFallbackEmbedder(next port.Embedder, logger *slog.Logger) *FallbackEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackEmbedder{next: next, logger: logger}
}

func (e *FallbackEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	dim := e.next.Dimension()
	vectors, err := e.next.Embed(ctx, texts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		e.logger.Warn("embedding batch failed, using zero vectors",
			"model", e.next.ModelName(), "texts", len(texts), "err", errors.Join(domain.ErrEmbeddingFailure, err))
		vectors = nil
	}

	out := make([][]float32, len(texts))
	for i := range texts {
		var v []float32
		if i < len(vectors) {
			v = vectors[i]
		}
		if verr := domain.ValidateVector(v, dim); verr != nil {
			if err == nil {
				e.logger.Warn("invalid embedding, using zero vector",
					"model", e.next.ModelName(), "index", i, "err", verr)
			}
			v = make([]float32, dim)
		}
		out[i] = v
	}
	return out, nil
}

func (e *FallbackEmbedder) Dimension() int {
	return e.next.Dimension()
}

func (e *FallbackEmbedder) ModelName() string {
	return e.next.ModelName()
}
