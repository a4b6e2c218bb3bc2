package port

import (
	"context"

	"contractrag/internal/domain"
)

// ChunkStore holds chunks partitioned by owner. Every read and write is
// scoped to a single owner; no method ever returns another owner's data.
type ChunkStore interface {
	// Insert stores a batch of chunks belonging to doc. The batch is
	// validated as a whole and becomes visible atomically, or not at all.
	Insert(ctx context.Context, owner domain.OwnerID, doc domain.Document, chunks []domain.Chunk) (int, error)

	// Scan returns all chunks of owner in insertion order.
	Scan(ctx context.Context, owner domain.OwnerID) ([]domain.Chunk, error)

	// DeleteDocument removes a document and all of its chunks. Unknown or
	// foreign documents are a no-op reporting zero removed chunks.
	DeleteDocument(ctx context.Context, owner domain.OwnerID, documentID string) (int, error)

	// Count returns the number of chunks stored for owner.
	Count(ctx context.Context, owner domain.OwnerID) (int, error)

	// Dimension returns the vector width enforced on insert.
	Dimension() int

	Close() error
}

// DocumentReader is implemented by stores that can return document records.
type DocumentReader interface {
	Document(ctx context.Context, owner domain.OwnerID, id string) (domain.Document, error)
}
