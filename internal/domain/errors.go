package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidEmbedding  = errors.New("embedding contains non-finite values")
	ErrOwnerMismatch     = errors.New("owner mismatch")
	ErrDocumentMismatch  = errors.New("chunk does not belong to document")
	ErrEmptyOwner        = errors.New("owner must not be empty")
	ErrEmbeddingFailure  = errors.New("embedding failed")
	ErrSearchCancelled   = errors.New("search cancelled")
	ErrNotFound          = errors.New("not found")
)

// DimensionError reports a vector whose length differs from the store's
// configured dimension.
type DimensionError struct {
	Expected int
	Got      int
	ChunkID  string
}

func (e *DimensionError) Error() string {
	if e.ChunkID == "" {
		return fmt.Sprintf("%s: expected %d, got %d", ErrDimensionMismatch, e.Expected, e.Got)
	}
	return fmt.Sprintf("%s: chunk %s: expected %d, got %d", ErrDimensionMismatch, e.ChunkID, e.Expected, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// OwnerError reports a chunk or document whose declared owner differs from
// the owner of the call.
type OwnerError struct {
	Expected OwnerID
	Got      OwnerID
	ChunkID  string
}

func (e *OwnerError) Error() string {
	if e.ChunkID == "" {
		return fmt.Sprintf("%s: document owner %q, call owner %q", ErrOwnerMismatch, e.Got, e.Expected)
	}
	return fmt.Sprintf("%s: chunk %s owner %q, call owner %q", ErrOwnerMismatch, e.ChunkID, e.Got, e.Expected)
}

func (e *OwnerError) Unwrap() error { return ErrOwnerMismatch }
