package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractrag/internal/adapter/analyzer"
	"contractrag/internal/adapter/similarity"
	"contractrag/internal/domain"
)

func newHash(dim int) *HashEmbedder {
	return NewHashEmbedder(dim, analyzer.NewTokenizer(true))
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := newHash(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, []string{"Payment is due within 30 days"})
	require.NoError(t, err)
	b, err := e.Embed(ctx, []string{"Payment is due within 30 days"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a[0], 64)
}

func TestHashEmbedder_UnitNorm(t *testing.T) {
	e := newHash(128)
	vecs, err := e.Embed(context.Background(), []string{"termination with ninety days written notice"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, similarity.Norm(vecs[0]), 1e-6)
}

func TestHashEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := newHash(16)
	vecs, err := e.Embed(context.Background(), []string{"", "the and of"})
	require.NoError(t, err)
	for i, v := range vecs {
		assert.Len(t, v, 16)
		assert.Zero(t, similarity.Norm(v), "vector %d should be zero", i)
	}
}

func TestHashEmbedder_SharedVocabularyScoresHigher(t *testing.T) {
	e := newHash(256)
	vecs, err := e.Embed(context.Background(), []string{
		"payment",
		"Payments are due within thirty days of invoice",
		"payment",
	})
	require.NoError(t, err)

	assert.Greater(t, similarity.Cosine(vecs[0], vecs[1]), 0.0)
	assert.InDelta(t, 1.0, similarity.Cosine(vecs[0], vecs[2]), 1e-9)
}

func TestHashEmbedder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newHash(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

type stubEmbedder struct {
	dim     int
	vectors [][]float32
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return s.vectors, s.err
}
func (s *stubEmbedder) Dimension() int    { return s.dim }
func (s *stubEmbedder) ModelName() string { return "stub" }

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestFallbackEmbedder_BatchErrorYieldsZeroVectors(t *testing.T) {
	var logs bytes.Buffer
	e := NewFallbackEmbedder(&stubEmbedder{dim: 3, err: errors.New("boom")}, testLogger(&logs))

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	for _, v := range vecs {
		assert.Equal(t, []float32{0, 0, 0}, v)
	}
	assert.Contains(t, logs.String(), "embedding batch failed")
}

func TestFallbackEmbedder_ReplacesInvalidVectors(t *testing.T) {
	var logs bytes.Buffer
	nan := float32(math.NaN())
	e := NewFallbackEmbedder(&stubEmbedder{dim: 2, vectors: [][]float32{
		{1, 0},
		{1, 2, 3},
		{nan, 1},
	}}, testLogger(&logs))

	vecs, err := e.Embed(context.Background(), []string{"ok", "wide", "nan", "missing"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 0}, {0, 0}, {0, 0}}, vecs)
	assert.Equal(t, 3, strings.Count(logs.String(), "invalid embedding"))
}

func TestFallbackEmbedder_PropagatesCancellation(t *testing.T) {
	e := NewFallbackEmbedder(&stubEmbedder{dim: 2, err: context.Canceled}, nil)
	_, err := e.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func newTestServer(t *testing.T, handler func(req embeddingRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		status, body := handler(req)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	t.Setenv("CONTRACTRAG_TEST_KEY", "test-key")
	srv := newTestServer(t, func(req embeddingRequest) (int, any) {
		assert.Equal(t, "text-embedding-3-small", req.Model)
		data := make([]embeddingData, len(req.Input))
		// Reverse order to check that Index is honoured.
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			data[i] = embeddingData{Index: j, Embedding: []float32{float32(j), 1}}
		}
		return http.StatusOK, embeddingResponse{Data: data}
	})

	e, err := NewOpenAIEmbedder("CONTRACTRAG_TEST_KEY", "text-embedding-3-small", srv.URL, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Dimension())
	assert.Equal(t, "text-embedding-3-small", e.ModelName())

	vecs, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, vecs)
}

func TestOpenAIEmbedder_WrongWidth(t *testing.T) {
	t.Setenv("CONTRACTRAG_TEST_KEY", "test-key")
	srv := newTestServer(t, func(req embeddingRequest) (int, any) {
		return http.StatusOK, embeddingResponse{Data: []embeddingData{{Index: 0, Embedding: []float32{1, 2, 3}}}}
	})

	e, err := NewOpenAIEmbedder("CONTRACTRAG_TEST_KEY", "m", srv.URL, 2)
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	t.Setenv("CONTRACTRAG_TEST_KEY", "test-key")
	srv := newTestServer(t, func(req embeddingRequest) (int, any) {
		return http.StatusTooManyRequests, map[string]any{"error": map[string]string{"message": "rate limited"}}
	})

	e, err := NewOpenAIEmbedder("CONTRACTRAG_TEST_KEY", "m", srv.URL, 2)
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAIEmbedder_MissingKey(t *testing.T) {
	t.Setenv("CONTRACTRAG_TEST_KEY", "")
	_, err := NewOpenAIEmbedder("CONTRACTRAG_TEST_KEY", "m", "", 0)
	assert.Error(t, err)
}

func TestNewOllamaEmbedder_Defaults(t *testing.T) {
	e := NewOllamaEmbedder("nomic-embed-text", "", 0)
	assert.Equal(t, 768, e.Dimension())
	assert.Equal(t, DefaultOllamaBaseURL, e.baseURL)
}
