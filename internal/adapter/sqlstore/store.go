// Package sqlstore keeps chunks in SQLite. Every statement binds values
// through placeholders; owner and document identifiers never reach the SQL
// text.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"contractrag/internal/adapter/vecenc"
	"contractrag/internal/domain"
	"contractrag/internal/port"
)

const schema = `
CREATE TABLE IF NOT EXISTS store_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
    owner_id      TEXT NOT NULL,
    document_id   TEXT NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL DEFAULT 0,
    status        TEXT NOT NULL DEFAULT '',
    risk          TEXT NOT NULL DEFAULT '',
    parties       TEXT NOT NULL DEFAULT '',
    contract_type TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (owner_id, document_id)
);

CREATE TABLE IF NOT EXISTS chunks (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    chunk_id    TEXT NOT NULL,
    owner_id    TEXT NOT NULL,
    document_id TEXT NOT NULL,
    text        TEXT NOT NULL,
    embedding   BLOB NOT NULL,
    metadata    TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (owner_id, document_id) REFERENCES documents(owner_id, document_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_chunks_owner_seq ON chunks(owner_id, seq);
CREATE INDEX IF NOT EXISTS idx_chunks_owner_doc ON chunks(owner_id, document_id);
`

const metaDimension = "dimension"

// ChunkStore is a ChunkStore backed by a SQLite database.
type ChunkStore struct {
	db        *sql.DB
	path      string
	dimension int
}

var _ port.ChunkStore = (*ChunkStore)(nil)

// Open opens the database at path, creating the schema if needed. Pass
// ":memory:" for a throwaway database.
func Open(path string, dimension int) (*ChunkStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path == ":memory:" {
		dsn = path + "?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &ChunkStore{db: db, path: path, dimension: dimension}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *ChunkStore) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	var stored string
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = ?`, metaDimension).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec(`INSERT INTO store_meta(key, value) VALUES(?, ?)`, metaDimension, strconv.Itoa(s.dimension))
		if err != nil {
			return fmt.Errorf("recording dimension: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading dimension: %w", err)
	}

	dim, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("corrupt dimension %q: %w", stored, err)
	}
	if dim != s.dimension {
		return fmt.Errorf("database was built with a different embedding width, rebuild it: %w",
			&domain.DimensionError{Expected: s.dimension, Got: dim})
	}
	return nil
}

func (s *ChunkStore) Dimension() int {
	return s.dimension
}

// Path returns the database path.
func (s *ChunkStore) Path() string {
	return s.path
}

func (s *ChunkStore) Insert(ctx context.Context, owner domain.OwnerID, doc domain.Document, chunks []domain.Chunk) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := domain.ValidateBatch(owner, doc, chunks, s.dimension); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO documents(owner_id, document_id, name, created_at, status, risk, parties, contract_type)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		string(owner), doc.ID, doc.Name, unixNano(doc.CreatedAt),
		string(doc.Status), string(doc.Risk), doc.Parties, doc.ContractType,
	)
	if err != nil {
		return 0, fmt.Errorf("saving document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks(chunk_id, owner_id, document_id, text, embedding, metadata)
		VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := marshalMetadata(c.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encoding metadata of chunk %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, string(owner), doc.ID, c.Text, vecenc.Encode(c.Embedding), meta); err != nil {
			return 0, fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing chunks: %w", err)
	}
	return len(chunks), nil
}

func (s *ChunkStore) Scan(ctx context.Context, owner domain.OwnerID) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, text, embedding, metadata
		FROM chunks
		WHERE owner_id = ?
		ORDER BY seq`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var (
			c    domain.Chunk
			blob []byte
			meta string
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Text, &blob, &meta); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if c.Embedding, err = vecenc.Decode(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		if c.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, fmt.Errorf("decoding metadata of chunk %s: %w", c.ID, err)
		}
		c.OwnerID = owner
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return out, nil
}

func (s *ChunkStore) DeleteDocument(ctx context.Context, owner domain.OwnerID, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE owner_id = ? AND document_id = ?`, string(owner), documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted chunks: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE owner_id = ? AND document_id = ?`, string(owner), documentID); err != nil {
		return 0, fmt.Errorf("deleting document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	return int(removed), nil
}

func (s *ChunkStore) Count(ctx context.Context, owner domain.OwnerID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE owner_id = ?`, string(owner)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Document returns a stored document of owner.
func (s *ChunkStore) Document(ctx context.Context, owner domain.OwnerID, id string) (domain.Document, error) {
	var (
		doc     domain.Document
		created int64
		status  string
		risk    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, created_at, status, risk, parties, contract_type
		FROM documents
		WHERE owner_id = ? AND document_id = ?`, string(owner), id,
	).Scan(&doc.Name, &created, &status, &risk, &doc.Parties, &doc.ContractType)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("loading document: %w", err)
	}
	doc.ID = id
	doc.OwnerID = owner
	doc.CreatedAt = fromUnixNano(created)
	doc.Status = domain.DocumentStatus(status)
	doc.Risk = domain.RiskLevel(risk)
	return doc, nil
}

func (s *ChunkStore) Close() error {
	return s.db.Close()
}

// created_at holds UTC nanoseconds; 0 stands for an unset time.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func marshalMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMetadata(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
