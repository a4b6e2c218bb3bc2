package port

import (
	"context"

	"contractrag/internal/domain"
)

// Searcher ranks an owner's chunks against a free-text query.
type Searcher interface {
	// Search returns at most k results ordered by descending relevance.
	Search(ctx context.Context, owner domain.OwnerID, query string, k int) (*domain.SearchResponse, error)
}
