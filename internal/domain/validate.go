package domain

import (
	"fmt"
	"math"
)

// ValidateBatch checks owner, document and vector width of an insert batch. The
// whole batch is rejected on the first violation.
func ValidateBatch(owner OwnerID, doc Document, chunks []Chunk, dimension int) error {
	if owner == "" {
		return ErrEmptyOwner
	}
	if doc.OwnerID != owner {
		return &OwnerError{Expected: owner, Got: doc.OwnerID}
	}
	for _, c := range chunks {
		if c.OwnerID != owner {
			return &OwnerError{Expected: owner, Got: c.OwnerID, ChunkID: c.ID}
		}
		if c.DocumentID != doc.ID {
			return fmt.Errorf("%w: chunk %s has document %q, batch document %q", ErrDocumentMismatch, c.ID, c.DocumentID, doc.ID)
		}
		if err := ValidateVector(c.Embedding, dimension); err != nil {
			if de, ok := err.(*DimensionError); ok {
				de.ChunkID = c.ID
			}
			return err
		}
	}
	return nil
}

// ValidateVector checks that v has exactly dimension finite components.
func ValidateVector(v []float32, dimension int) error {
	if len(v) != dimension {
		return &DimensionError{Expected: dimension, Got: len(v)}
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidEmbedding
		}
	}
	return nil
}
