package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractrag/internal/domain"
	"contractrag/internal/port"
	"contractrag/internal/port/porttest"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T, dimension int) *ChunkStore {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "chunks.db"), dimension)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, st.Close()) })
	return st
}

func TestChunkStore_Contract(t *testing.T) {
	porttest.RunChunkStoreSuite(t, func(t *testing.T, dimension int) port.ChunkStore {
		return setupTestStore(t, dimension)
	})
}

func TestChunkStore_InMemory(t *testing.T) {
	st, err := Open(":memory:", 2)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	doc := domain.Document{ID: "d1", OwnerID: "u1"}
	n, err := st.Insert(ctx, "u1", doc, []domain.Chunk{
		{ID: "c1", DocumentID: "d1", OwnerID: "u1", Text: "x", Embedding: []float32{1, 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := st.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestChunkStore_HostileIdentifiersAreData(t *testing.T) {
	st := setupTestStore(t, 2)
	ctx := context.Background()

	evil := domain.OwnerID("u1' OR '1'='1")
	doc := domain.Document{ID: "d1'; DROP TABLE chunks; --", OwnerID: evil}
	_, err := st.Insert(ctx, evil, doc, []domain.Chunk{
		{ID: "c1", DocumentID: doc.ID, OwnerID: evil, Text: "x", Embedding: []float32{1, 0}},
	})
	require.NoError(t, err)

	_, err = st.Insert(ctx, "u1", domain.Document{ID: "d2", OwnerID: "u1"}, []domain.Chunk{
		{ID: "c2", DocumentID: "d2", OwnerID: "u1", Text: "y", Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)

	got, err := st.Scan(ctx, evil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)

	got, err = st.Scan(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].ID)
}

func TestChunkStore_ReopenChecksDimension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")

	st, err := Open(path, 3)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(path, 3)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = Open(path, 4)
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestChunkStore_Document(t *testing.T) {
	st := setupTestStore(t, 2)
	ctx := context.Background()

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := domain.Document{ID: "d1", OwnerID: "u1", Name: "nda.pdf", CreatedAt: created, Status: domain.StatusActive, Parties: "Acme, TechCorp"}
	_, err := st.Insert(ctx, "u1", doc, []domain.Chunk{
		{ID: "c1", DocumentID: "d1", OwnerID: "u1", Embedding: []float32{1, 0}, Metadata: map[string]any{"page": 1, "clause_type": "confidentiality"}},
	})
	require.NoError(t, err)

	got, err := st.Document(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, "nda.pdf", got.Name)
	assert.Equal(t, "Acme, TechCorp", got.Parties)
	assert.True(t, got.CreatedAt.Equal(created))

	_, err = st.Document(ctx, "u2", "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	chunks, err := st.Scan(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "confidentiality", chunks[0].Metadata["clause_type"])
	assert.Equal(t, float64(1), chunks[0].Metadata["page"])
}
