package store

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

func openTestStore(t *testing.T, dimension int) *BoltChunkStore {
	t.Helper()
	st, err := NewBoltChunkStore(filepath.Join(t.TempDir(), "index.db"), dimension)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestBoltChunkStore_Contract(t *testing.T) {
	porttest.RunChunkStoreSuite(t, func(t *testing.T, dimension int) port.ChunkStore {
		return openTestStore(t, dimension)
	})
}

func TestBoltChunkStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	st, err := NewBoltChunkStore(path, 3)
	require.NoError(t, err)

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := domain.Document{
		ID: "d1", OwnerID: "u1", Name: "msa.txt", CreatedAt: created,
		Status: domain.StatusRenewalDue, Risk: domain.RiskHigh, ContractType: "Master Service Agreement",
	}
	_, err = st.Insert(ctx, "u1", doc, []domain.Chunk{
		{ID: "c1", DocumentID: "d1", OwnerID: "u1", Text: "first", Embedding: []float32{0.25, -1, 3.5}, Metadata: map[string]any{"page": 2}},
		{ID: "c2", DocumentID: "d1", OwnerID: "u1", Text: "second", Embedding: []float32{1, 1, 1}},
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = NewBoltChunkStore(path, 3)
	require.NoError(t, err)
	defer st.Close()

	chunks, err := st.Scan(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c1", chunks[0].ID)
	assert.Equal(t, []float32{0.25, -1, 3.5}, chunks[0].Embedding)
	// JSON numbers come back as float64.
	assert.Equal(t, float64(2), chunks[0].Metadata["page"])

	got, err := st.Document(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, "msa.txt", got.Name)
	assert.Equal(t, domain.StatusRenewalDue, got.Status)
	assert.Equal(t, domain.RiskHigh, got.Risk)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestBoltChunkStore_RejectsDifferentDimension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	st, err := NewBoltChunkStore(path, 3)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = NewBoltChunkStore(path, 8)
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestBoltChunkStore_SchemaInfo(t *testing.T) {
	st := openTestStore(t, 5)

	info, err := st.GetSchemaInfo()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, info.Version)
	assert.Equal(t, 5, info.Dimension)
}

func TestBoltChunkStore_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	st, err := NewBoltChunkStore(path, 3)
	require.NoError(t, err)
	require.NoError(t, st.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion + 1, Dimension: 3}))
	require.NoError(t, st.Close())

	_, err = NewBoltChunkStore(path, 3)
	require.Error(t, err)
}

func TestBoltChunkStore_InvalidDimension(t *testing.T) {
	_, err := NewBoltChunkStore(filepath.Join(t.TempDir(), "index.db"), 0)
	require.Error(t, err)
}
