package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"contractrag/internal/adapter/similarity"
	"contractrag/internal/port"
)

// HashEmbedder maps text to a vector by signed feature hashing of its
// tokens. It needs no model and is fully deterministic, which makes it the
// default for tests and offline use. Texts sharing vocabulary get positive
// cosine similarity; it carries no semantics beyond that.
type HashEmbedder struct {
	dimension int
	tokenizer port.Tokenizer
}

var _ port.Embedder = (*HashEmbedder)(nil)

func NewHashEmbedder(dimension int, tokenizer port.Tokenizer) *HashEmbedder {
	return &HashEmbedder{dimension: dimension, tokenizer: tokenizer}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

// embedOne returns the zero vector for text without tokens.
func (e *HashEmbedder) embedOne(text string) []float32 {
	v := make([]float32, e.dimension)
	if e.dimension == 0 {
		return v
	}

	counts := make(map[string]int)
	for _, tok := range e.tokenizer.Tokenize(text) {
		counts[tok]++
	}
	for tok, n := range counts {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()

		idx := int(sum % uint64(e.dimension))
		weight := float32(1 + math.Log(float64(n)))
		if sum>>63 == 1 {
			weight = -weight
		}
		v[idx] += weight
	}

	similarity.Normalize(v)
	return v
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "hash"
}
