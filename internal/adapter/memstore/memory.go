package memstore

import (
	"context"
	"sync"

	"contractrag/internal/adapter/ownerlock"
	"contractrag/internal/domain"
	"contractrag/internal/port"
)

// partition holds one owner's data. chunks is an immutable snapshot: writers
// build a new slice and swap it in under the owner lock, so a reader holding
// an old snapshot never sees a half-applied batch.
type partition struct {
	chunks []domain.Chunk
	docs   map[string]domain.Document
}

type MemoryStore struct {
	dimension int
	locks     *ownerlock.Locker

	mu         sync.RWMutex
	partitions map[domain.OwnerID]*partition
}

var _ port.ChunkStore = (*MemoryStore)(nil)

func NewMemoryStore(dimension int, locks *ownerlock.Locker) *MemoryStore {
	if locks == nil {
		locks = ownerlock.New(ownerlock.PerOwner)
	}
	return &MemoryStore{
		dimension:  dimension,
		locks:      locks,
		partitions: make(map[domain.OwnerID]*partition),
	}
}

func (s *MemoryStore) Dimension() int {
	return s.dimension
}

func (s *MemoryStore) partition(owner domain.OwnerID, create bool) *partition {
	s.mu.RLock()
	p, ok := s.partitions[owner]
	s.mu.RUnlock()
	if ok || !create {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok = s.partitions[owner]; !ok {
		p = &partition{docs: make(map[string]domain.Document)}
		s.partitions[owner] = p
	}
	return p
}

func (s *MemoryStore) Insert(ctx context.Context, owner domain.OwnerID, doc domain.Document, chunks []domain.Chunk) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := domain.ValidateBatch(owner, doc, chunks, s.dimension); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	lock := s.locks.For(owner)
	lock.Lock()
	defer lock.Unlock()

	p := s.partition(owner, true)

	next := make([]domain.Chunk, len(p.chunks), len(p.chunks)+len(chunks))
	copy(next, p.chunks)
	for _, c := range chunks {
		next = append(next, domain.CloneChunk(c))
	}

	if _, ok := p.docs[doc.ID]; !ok {
		doc.CreatedAt = doc.CreatedAt.UTC()
		p.docs[doc.ID] = doc
	}
	p.chunks = next
	return len(chunks), nil
}

func (s *MemoryStore) Scan(ctx context.Context, owner domain.OwnerID) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := s.locks.For(owner)
	lock.RLock()
	defer lock.RUnlock()

	p := s.partition(owner, false)
	if p == nil {
		return nil, nil
	}
	out := make([]domain.Chunk, len(p.chunks))
	copy(out, p.chunks)
	return out, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, owner domain.OwnerID, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	lock := s.locks.For(owner)
	lock.Lock()
	defer lock.Unlock()

	p := s.partition(owner, false)
	if p == nil {
		return 0, nil
	}

	kept := make([]domain.Chunk, 0, len(p.chunks))
	for _, c := range p.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	removed := len(p.chunks) - len(kept)

	delete(p.docs, documentID)
	p.chunks = kept
	return removed, nil
}

func (s *MemoryStore) Count(ctx context.Context, owner domain.OwnerID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	lock := s.locks.For(owner)
	lock.RLock()
	defer lock.RUnlock()

	p := s.partition(owner, false)
	if p == nil {
		return 0, nil
	}
	return len(p.chunks), nil
}

// Document returns a stored document of owner.
func (s *MemoryStore) Document(ctx context.Context, owner domain.OwnerID, id string) (domain.Document, error) {
	lock := s.locks.For(owner)
	lock.RLock()
	defer lock.RUnlock()

	p := s.partition(owner, false)
	if p == nil {
		return domain.Document{}, domain.ErrNotFound
	}
	doc, ok := p.docs[id]
	if !ok {
		return domain.Document{}, domain.ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
