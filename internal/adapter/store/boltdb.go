package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"contractrag/internal/adapter/vecenc"
	"contractrag/internal/domain"
	"contractrag/internal/port"
)

// Bucket layout:
//
//	meta/                     schema version and dimension
//	owners/<owner>/chunks     seq (big-endian uint64) -> storedChunk
//	owners/<owner>/docs       document id -> docMeta
//	owners/<owner>/doc_chunks document id -> []seq
//
// Chunk keys come from the owner bucket's sequence, so cursor order is
// insertion order.
var (
	bucketMeta      = []byte("meta")
	bucketOwners    = []byte("owners")
	bucketChunks    = []byte("chunks")
	bucketDocs      = []byte("docs")
	bucketDocChunks = []byte("doc_chunks")
)

// BoltChunkStore is a ChunkStore persisted in a single bbolt file. bbolt
// runs one write transaction at a time and gives readers a consistent
// snapshot, so a batch is visible entirely or not at all.
type BoltChunkStore struct {
	db        *bbolt.DB
	dimension int
}

var _ port.ChunkStore = (*BoltChunkStore)(nil)

type storedChunk struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"doc_id"`
	OwnerID    string         `json:"owner_id"`
	Text       string         `json:"text"`
	Vector     []byte         `json:"v"`
	Metadata   map[string]any `json:"m,omitempty"`
}

type docMeta struct {
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	Status       string    `json:"status,omitempty"`
	Risk         string    `json:"risk,omitempty"`
	Parties      string    `json:"parties,omitempty"`
	ContractType string    `json:"contract_type,omitempty"`
}

// NewBoltChunkStore opens (or creates) the store at path. Opening an index
// built with a different dimension fails with ErrDimensionMismatch.
func NewBoltChunkStore(path string, dimension int) (*BoltChunkStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketOwners} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltChunkStore{db: db, dimension: dimension}
	if err := s.checkSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltChunkStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltChunkStore) Dimension() int {
	return s.dimension
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// ownerBucket returns the owner's bucket, or nil when the owner has never
// stored anything. Owner names are used as raw keys, never interpolated.
func ownerBucket(tx *bbolt.Tx, owner domain.OwnerID) *bbolt.Bucket {
	return tx.Bucket(bucketOwners).Bucket([]byte(owner))
}

func createOwnerBucket(tx *bbolt.Tx, owner domain.OwnerID) (*bbolt.Bucket, error) {
	ob, err := tx.Bucket(bucketOwners).CreateBucketIfNotExists([]byte(owner))
	if err != nil {
		return nil, err
	}
	for _, name := range [][]byte{bucketChunks, bucketDocs, bucketDocChunks} {
		if _, err := ob.CreateBucketIfNotExists(name); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
	}
	return ob, nil
}

func (s *BoltChunkStore) Insert(ctx context.Context, owner domain.OwnerID, doc domain.Document, chunks []domain.Chunk) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := domain.ValidateBatch(owner, doc, chunks, s.dimension); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		ob, err := createOwnerBucket(tx, owner)
		if err != nil {
			return err
		}
		chunkBucket := ob.Bucket(bucketChunks)
		docsBucket := ob.Bucket(bucketDocs)
		docChunks := ob.Bucket(bucketDocChunks)

		if docsBucket.Get([]byte(doc.ID)) == nil {
			data, err := json.Marshal(docMeta{
				Name:         doc.Name,
				CreatedAt:    doc.CreatedAt.UTC(),
				Status:       string(doc.Status),
				Risk:         string(doc.Risk),
				Parties:      doc.Parties,
				ContractType: doc.ContractType,
			})
			if err != nil {
				return err
			}
			if err := docsBucket.Put([]byte(doc.ID), data); err != nil {
				return err
			}
		}

		var seqs []uint64
		if existing := docChunks.Get([]byte(doc.ID)); existing != nil {
			if err := json.Unmarshal(existing, &seqs); err != nil {
				return fmt.Errorf("corrupt chunk list for document %s: %w", doc.ID, err)
			}
		}

		for _, c := range chunks {
			seq, err := chunkBucket.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(storedChunk{
				ID:         c.ID,
				DocumentID: c.DocumentID,
				OwnerID:    string(c.OwnerID),
				Text:       c.Text,
				Vector:     vecenc.Encode(c.Embedding),
				Metadata:   c.Metadata,
			})
			if err != nil {
				return fmt.Errorf("failed to encode chunk %s: %w", c.ID, err)
			}
			if err := chunkBucket.Put(itob(seq), data); err != nil {
				return err
			}
			seqs = append(seqs, seq)
		}

		data, err := json.Marshal(seqs)
		if err != nil {
			return err
		}
		return docChunks.Put([]byte(doc.ID), data)
	})
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (s *BoltChunkStore) Scan(ctx context.Context, owner domain.OwnerID) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		ob := ownerBucket(tx, owner)
		if ob == nil {
			return nil
		}
		return ob.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			c, err := decodeChunk(v)
			if err != nil {
				return err
			}
			// The owner bucket is the partition boundary; the stored owner
			// field is a second check against a corrupted file.
			if c.OwnerID != owner {
				return fmt.Errorf("chunk %s stored under owner %q claims owner %q", c.ID, owner, c.OwnerID)
			}
			chunks = append(chunks, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func decodeChunk(data []byte) (domain.Chunk, error) {
	var sc storedChunk
	if err := json.Unmarshal(data, &sc); err != nil {
		return domain.Chunk{}, fmt.Errorf("failed to decode chunk: %w", err)
	}
	vec, err := vecenc.Decode(sc.Vector)
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("chunk %s: %w", sc.ID, err)
	}
	return domain.Chunk{
		ID:         sc.ID,
		DocumentID: sc.DocumentID,
		OwnerID:    domain.OwnerID(sc.OwnerID),
		Text:       sc.Text,
		Embedding:  vec,
		Metadata:   sc.Metadata,
	}, nil
}

func (s *BoltChunkStore) DeleteDocument(ctx context.Context, owner domain.OwnerID, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		ob := ownerBucket(tx, owner)
		if ob == nil {
			return nil
		}
		docChunks := ob.Bucket(bucketDocChunks)
		data := docChunks.Get([]byte(documentID))
		if data == nil {
			return ob.Bucket(bucketDocs).Delete([]byte(documentID))
		}

		var seqs []uint64
		if err := json.Unmarshal(data, &seqs); err != nil {
			return fmt.Errorf("corrupt chunk list for document %s: %w", documentID, err)
		}
		chunkBucket := ob.Bucket(bucketChunks)
		for _, seq := range seqs {
			key := itob(seq)
			if chunkBucket.Get(key) == nil {
				continue
			}
			if err := chunkBucket.Delete(key); err != nil {
				return err
			}
			removed++
		}
		if err := docChunks.Delete([]byte(documentID)); err != nil {
			return err
		}
		return ob.Bucket(bucketDocs).Delete([]byte(documentID))
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *BoltChunkStore) Count(ctx context.Context, owner domain.OwnerID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		ob := ownerBucket(tx, owner)
		if ob == nil {
			return nil
		}
		count = ob.Bucket(bucketChunks).Stats().KeyN
		return nil
	})
	return count, err
}

// Document returns a stored document of owner.
func (s *BoltChunkStore) Document(ctx context.Context, owner domain.OwnerID, id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		ob := ownerBucket(tx, owner)
		if ob == nil {
			return domain.ErrNotFound
		}
		data := ob.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return domain.ErrNotFound
		}
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		doc = domain.Document{
			ID:           id,
			OwnerID:      owner,
			Name:         meta.Name,
			CreatedAt:    meta.CreatedAt.UTC(),
			Status:       domain.DocumentStatus(meta.Status),
			Risk:         domain.RiskLevel(meta.Risk),
			Parties:      meta.Parties,
			ContractType: meta.ContractType,
		}
		return nil
	})
	return doc, err
}

func (s *BoltChunkStore) Close() error {
	return s.db.Close()
}
