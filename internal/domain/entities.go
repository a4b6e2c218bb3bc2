package domain

import (
	"fmt"
	"strings"
	"time"
)

// OwnerID identifies the tenant that owns documents and chunks.
type OwnerID string

type DocumentStatus string

const (
	StatusActive     DocumentStatus = "active"
	StatusExpired    DocumentStatus = "expired"
	StatusRenewalDue DocumentStatus = "renewal_due"
)

// ParseStatus accepts the stored form and the display form ("Renewal Due").
// Empty means active.
func ParseStatus(s string) (DocumentStatus, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	switch DocumentStatus(norm) {
	case "", StatusActive:
		return StatusActive, nil
	case StatusExpired, StatusRenewalDue:
		return DocumentStatus(norm), nil
	}
	return "", fmt.Errorf("unknown document status %q", s)
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ParseRisk accepts a risk level in any case. Empty means unassessed.
func ParseRisk(s string) (RiskLevel, error) {
	switch r := RiskLevel(strings.ToLower(strings.TrimSpace(s))); r {
	case "", RiskLow, RiskMedium, RiskHigh:
		return r, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

type Document struct {
	ID           string         `json:"id"`
	OwnerID      OwnerID        `json:"owner_id"`
	Name         string         `json:"name"`
	CreatedAt    time.Time      `json:"created_at"`
	Status       DocumentStatus `json:"status,omitempty"`
	Risk         RiskLevel      `json:"risk,omitempty"`
	Parties      string         `json:"parties,omitempty"`
	ContractType string         `json:"contract_type,omitempty"`
}

// Chunk is the unit of retrieval. Stores treat chunks as immutable once
// inserted; callers must not modify the Embedding or Metadata of a chunk
// returned by a scan.
type Chunk struct {
	ID         string         `json:"chunk_id"`
	DocumentID string         `json:"document_id"`
	OwnerID    OwnerID        `json:"owner_id"`
	Text       string         `json:"text"`
	Embedding  []float32      `json:"embedding"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ChunkInput is a parsed text span handed over by the document parser.
type ChunkInput struct {
	Text     string
	Metadata map[string]any
}

type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

type SearchResult struct {
	ChunkID    string         `json:"chunk_id"`
	DocumentID string         `json:"document_id"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Score      float64        `json:"relevance_score"`
}

type SearchResponse struct {
	Owner   OwnerID        `json:"owner"`
	Query   string         `json:"query,omitempty"`
	TopK    int            `json:"top_k"`
	Results []SearchResult `json:"results"`
}

// CloneChunk returns a deep copy of c so the store never shares mutable
// state with its callers.
func CloneChunk(c Chunk) Chunk {
	out := c
	if c.Embedding != nil {
		out.Embedding = append([]float32(nil), c.Embedding...)
	}
	out.Metadata = CloneMetadata(c.Metadata)
	return out
}

// CloneMetadata copies the top level of m.
func CloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
