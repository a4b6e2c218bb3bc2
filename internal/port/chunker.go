package port

import "contractrag/internal/domain"

type Chunker interface {
	Chunk(doc domain.Document, content string) ([]domain.ChunkInput, error)
}
