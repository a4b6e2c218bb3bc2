// Package porttest holds contract tests shared by every port implementation.
package porttest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractrag/internal/domain"
	"contractrag/internal/port"
)

// Dimension is the vector width the suite opens stores with.
const Dimension = 4

// StoreFactory opens an empty store enforcing the given dimension. The
// factory is responsible for closing it when the test ends.
type StoreFactory func(t *testing.T, dimension int) port.ChunkStore

func doc(owner domain.OwnerID, id string) domain.Document {
	return domain.Document{ID: id, OwnerID: owner, Name: id + ".txt"}
}

func chunk(owner domain.OwnerID, docID, id, text string, v ...float32) domain.Chunk {
	return domain.Chunk{
		ID:         id,
		DocumentID: docID,
		OwnerID:    owner,
		Text:       text,
		Embedding:  v,
		Metadata:   map[string]any{"clause_type": "general"},
	}
}

func ids(chunks []domain.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.ID
	}
	return out
}

// RunChunkStoreSuite exercises the ChunkStore contract.
func RunChunkStoreSuite(t *testing.T, open StoreFactory) {
	t.Run("InsertAndScanInOrder", func(t *testing.T) {
		st := open(t, Dimension)
		ctx := context.Background()

		n, err := st.Insert(ctx, "u1", doc("u1", "d1"), []domain.Chunk{
			chunk("u1", "d1", "c1", "payment terms", 1, 0, 0, 0),
			chunk("u1", "d1", "c2", "termination clause", 0, 1, 0, 0),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = st.Insert(ctx, "u1", doc("u1", "d2"), []domain.Chunk{
			chunk("u1", "d2", "c3", "governing law", 0, 0, 1, 0),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := st.Scan(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2", "c3"}, ids(got))

		assert.Equal(t, "payment terms", got[0].Text)
		assert.Equal(t, "d1", got[0].DocumentID)
		assert.Equal(t, domain.OwnerID("u1"), got[0].OwnerID)
		assert.Equal(t, []float32{1, 0, 0, 0}, got[0].Embedding)
		assert.Equal(t, "general", got[0].Metadata["clause_type"])
		for _, c := range got {
			assert.Len(t, c.Embedding, Dimension)
		}
	})

	t.Run("ScanUnknownOwnerIsEmpty", func(t *testing.T) {
		st := open(t, Dimension)
		got, err := st.Scan(context.Background(), "nobody")
		require.NoError(t, err)
		assert.Empty(t, got)

		count, err := st.Count(context.Background(), "nobody")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		st := open(t, Dimension)
		n, err := st.Insert(context.Background(), "u1", doc("u1", "d1"), nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("DimensionMismatchRejectsWholeBatch", func(t *testing.T) {
		st := open(t, Dimension)
		ctx := context.Background()

		_, err := st.Insert(ctx, "u1", doc("u1", "d1"), []domain.Chunk{
			chunk("u1", "d1", "c1", "ok", 1, 0, 0, 0),
			chunk("u1", "d1", "c2", "short", 1, 0),
		})
		require.ErrorIs(t, err, domain.ErrDimensionMismatch)

		var de *domain.DimensionError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, Dimension, de.Expected)
		assert.Equal(t, 2, de.Got)

		got, err := st.Scan(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, got, "no chunk of a rejected batch may be stored")
	})

	t.Run("NonFiniteEmbeddingRejected", func(t *testing.T) {
		st := open(t, Dimension)
		var zero float32
		inf := 1 / zero
		_, err := st.Insert(context.Background(), "u1", doc("u1", "d1"), []domain.Chunk{
			chunk("u1", "d1", "c1", "inf", inf, 0, 0, 0),
		})
		require.ErrorIs(t, err, domain.ErrInvalidEmbedding)
	})

	t.Run("OwnerMismatchRejectsWholeBatch", func(t *testing.T) {
		st := open(t, Dimension)
		ctx := context.Background()

		_, err := st.Insert(ctx, "u1", doc("u1", "d1"), []domain.Chunk{
			chunk("u1", "d1", "c1", "mine", 1, 0, 0, 0),
			chunk("u2", "d1", "c2", "theirs", 0, 1, 0, 0),
		})
		require.ErrorIs(t, err, domain.ErrOwnerMismatch)

		_, err = st.Insert(ctx, "u1", doc("u2", "d1"), []domain.Chunk{
			chunk("u1", "d1", "c1", "mine", 1, 0, 0, 0),
		})
		require.ErrorIs(t, err, domain.ErrOwnerMismatch)

		for _, owner := range []domain.OwnerID{"u1", "u2"} {
			got, err := st.Scan(ctx, owner)
			require.NoError(t, err)
			assert.Empty(t, got)
		}
	})

	t.Run("DocumentMismatchRejected", func(t *testing.T) {
		st := open(t, Dimension)
		_, err := st.Insert(context.Background(), "u1", doc("u1", "d1"), []domain.Chunk{
			chunk("u1", "d2", "c1", "stray", 1, 0, 0, 0),
		})
		require.ErrorIs(t, err, domain.ErrDocumentMismatch)
	})

	t.Run("EmptyOwnerRejected", func(t *testing.T) {
		st := open(t, Dimension)
		_, err := st.Insert(context.Background(), "", doc("", "d1"), []domain.Chunk{
			chunk("", "d1", "c1", "anon", 1, 0, 0, 0),
		})
		require.ErrorIs(t, err, domain.ErrEmptyOwner)
	})

	t.Run("TenantIsolationWithDocumentIDCollision", func(t *testing.T) {
		st := open(t, Dimension)
		ctx := context.Background()

		_, err := st.Insert(ctx, "u1", doc("u1", "shared"), []domain.Chunk{
			chunk("u1", "shared", "a1", "u1 text", 1, 0, 0, 0),
		})
		require.NoError(t, err)
		_, err = st.Insert(ctx, "u2", doc("u2", "shared"), []domain.Chunk{
			chunk("u2", "shared", "b1", "u2 text", 0, 1, 0, 0),
		})
		require.NoError(t, err)

		got, err := st.Scan(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, ids(got))

		got, err = st.Scan(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, []string{"b1"}, ids(got))

		// Deleting u2's document leaves u1's same-named document alone.
		removed, err := st.DeleteDocument(ctx, "u2", "shared")
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		got, err = st.Scan(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, ids(got))
	})

	t.Run("CascadeDelete", func(t *testing.T) {
		st := open(t, Dimension)
		ctx := context.Background()

		_, err := st.Insert(ctx, "u1", doc("u1", "d1"), []domain.Chunk{
			chunk("u1", "d1", "c1", "one", 1, 0, 0, 0),
			chunk("u1", "d1", "c2", "two", 0, 1, 0, 0),
		})
		require.NoError(t, err)
		_, err = st.Insert(ctx, "u1", doc("u1", "d2"), []domain.Chunk{
			chunk("u1", "d2", "c3", "three", 0, 0, 1, 0),
		})
		require.NoError(t, err)

		removed, err := st.DeleteDocument(ctx, "u1", "d1")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		got, err := st.Scan(ctx, "u1")
		require.NoError(t, err)
		for _, c := range got {
			assert.NotEqual(t, "d1", c.DocumentID)
		}
		assert.Equal(t, []string{"c3"}, ids(got))

		count, err := st.Count(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		st := open(t, Dimension)
		ctx := context.Background()

		_, err := st.Insert(ctx, "u1", doc("u1", "d1"), []domain.Chunk{
			chunk("u1", "d1", "c1", "one", 1, 0, 0, 0),
		})
		require.NoError(t, err)

		removed, err := st.DeleteDocument(ctx, "u1", "missing")
		require.NoError(t, err)
		assert.Zero(t, removed)

		removed, err = st.DeleteDocument(ctx, "u2", "d1")
		require.NoError(t, err)
		assert.Zero(t, removed, "foreign owner must not delete u1's document")

		removed, err = st.DeleteDocument(ctx, "u1", "d1")
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		removed, err = st.DeleteDocument(ctx, "u1", "d1")
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("ReinsertAppendsIndependentBatch", func(t *testing.T) {
		st := open(t, Dimension)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			_, err := st.Insert(ctx, "u1", doc("u1", "d1"), []domain.Chunk{
				chunk("u1", "d1", fmt.Sprintf("c%d", i), "same text", 1, 0, 0, 0),
			})
			require.NoError(t, err)
		}

		got, err := st.Scan(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"c0", "c1"}, ids(got))

		removed, err := st.DeleteDocument(ctx, "u1", "d1")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
	})

	t.Run("InsertCopiesInput", func(t *testing.T) {
		st := open(t, Dimension)
		ctx := context.Background()

		c := chunk("u1", "d1", "c1", "text", 1, 0, 0, 0)
		_, err := st.Insert(ctx, "u1", doc("u1", "d1"), []domain.Chunk{c})
		require.NoError(t, err)

		c.Embedding[0] = 42
		c.Metadata["clause_type"] = "changed"

		got, err := st.Scan(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, float32(1), got[0].Embedding[0])
		assert.Equal(t, "general", got[0].Metadata["clause_type"])
	})

	t.Run("DimensionReported", func(t *testing.T) {
		st := open(t, Dimension)
		assert.Equal(t, Dimension, st.Dimension())
	})

	t.Run("ConcurrentOwnersStayIsolated", func(t *testing.T) {
		st := open(t, Dimension)
		ctx := context.Background()
		owners := []domain.OwnerID{"u1", "u2", "u3"}

		var wg sync.WaitGroup
		for _, owner := range owners {
			owner := owner
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					docID := fmt.Sprintf("d%d", i)
					_, err := st.Insert(ctx, owner, doc(owner, docID), []domain.Chunk{
						chunk(owner, docID, fmt.Sprintf("%s-%d-a", owner, i), "a", 1, 0, 0, 0),
						chunk(owner, docID, fmt.Sprintf("%s-%d-b", owner, i), "b", 0, 1, 0, 0),
					})
					assert.NoError(t, err)

					got, err := st.Scan(ctx, owner)
					assert.NoError(t, err)
					for _, c := range got {
						assert.Equal(t, owner, c.OwnerID)
					}
					// Batches land whole: a document never shows half its chunks.
					assert.Zero(t, len(got)%2)

					if i%3 == 0 {
						_, err = st.DeleteDocument(ctx, owner, docID)
						assert.NoError(t, err)
					}
				}
			}()
		}
		wg.Wait()

		for _, owner := range owners {
			got, err := st.Scan(ctx, owner)
			require.NoError(t, err)
			// 20 documents, 7 deleted (i = 0, 3, ..., 18), two chunks each.
			assert.Len(t, got, 26)
			for _, c := range got {
				assert.Equal(t, owner, c.OwnerID)
			}
		}
	})

	t.Run("ConcurrentReaderSeesWholeBatches", func(t *testing.T) {
		st := open(t, Dimension)
		ctx := context.Background()
		const batchSize = 3
		const batches = 30

		stop := make(chan struct{})
		var reader sync.WaitGroup
		reader.Add(1)
		go func() {
			defer reader.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := st.Scan(ctx, "u1")
				if !assert.NoError(t, err) {
					return
				}
				if !assert.Zero(t, len(got)%batchSize, "scan saw a partial batch") {
					return
				}
				for i := 0; i < len(got); i += batchSize {
					for _, c := range got[i : i+batchSize] {
						assert.Equal(t, got[i].DocumentID, c.DocumentID)
					}
				}
			}
		}()

		var writers sync.WaitGroup
		for w := 0; w < 2; w++ {
			w := w
			writers.Add(1)
			go func() {
				defer writers.Done()
				for i := 0; i < batches/2; i++ {
					docID := fmt.Sprintf("w%d-d%d", w, i)
					chunks := make([]domain.Chunk, batchSize)
					for j := range chunks {
						chunks[j] = chunk("u1", docID, fmt.Sprintf("%s-%d", docID, j), "clause", 1, 0, 0, 0)
					}
					_, err := st.Insert(ctx, "u1", doc("u1", docID), chunks)
					assert.NoError(t, err)
				}
			}()
		}
		writers.Wait()
		close(stop)
		reader.Wait()

		got, err := st.Scan(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, got, batches*batchSize)
	})

	t.Run("DocumentKeepsCreatedAt", func(t *testing.T) {
		st := open(t, Dimension)
		reader, ok := st.(port.DocumentReader)
		if !ok {
			t.Skip("store does not return document records")
		}
		ctx := context.Background()

		created := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)
		d := doc("u1", "d1")
		d.CreatedAt = created.In(time.FixedZone("UTC+2", 2*60*60))
		_, err := st.Insert(ctx, "u1", d, []domain.Chunk{chunk("u1", "d1", "c1", "text", 1, 0, 0, 0)})
		require.NoError(t, err)

		got, err := reader.Document(ctx, "u1", "d1")
		require.NoError(t, err)
		assert.True(t, created.Equal(got.CreatedAt), "got %v, want %v", got.CreatedAt, created)
		assert.Equal(t, time.UTC, got.CreatedAt.Location())
	})

	t.Run("CancelledContext", func(t *testing.T) {
		st := open(t, Dimension)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := st.Scan(ctx, "u1")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
