package chunker

import (
	"strings"
	"testing"

	"contractrag/internal/adapter/analyzer"
	"contractrag/internal/domain"
)

const sampleContract = `TERMINATION: Either party may terminate with 90 days notice.
Signed.
Payment Terms: Invoices are payable within thirty days.
Late payments accrue interest at 1.5% monthly.

CONFIDENTIALITY: Both sides keep all shared information secret.`

func TestClauseChunkerOneLinePerChunk(t *testing.T) {
	chunker := NewClauseChunker(0, DefaultMinChars, DefaultLinesPerPage, analyzer.NewTokenizer(false))
	doc := domain.Document{ID: "doc1", Name: "msa.txt"}

	chunks, err := chunker.Chunk(doc, sampleContract)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d: %+v", len(chunks), chunks)
	}

	wantClauses := []string{"termination", "payment", "payment", "confidentiality"}
	wantPages := []int{1, 1, 2, 2}
	for i, chunk := range chunks {
		if got := chunk.Metadata["clause_type"]; got != wantClauses[i] {
			t.Errorf("chunk %d: expected clause %q, got %v", i, wantClauses[i], got)
		}
		if got := chunk.Metadata["page"]; got != wantPages[i] {
			t.Errorf("chunk %d: expected page %d, got %v", i, wantPages[i], got)
		}
		if got := chunk.Metadata["contract_name"]; got != "msa.txt" {
			t.Errorf("chunk %d: expected contract_name msa.txt, got %v", i, got)
		}
		if strings.Contains(chunk.Text, "\n") {
			t.Errorf("chunk %d: expected a single line, got %q", i, chunk.Text)
		}
	}
}

func TestClauseChunkerSkipsShortLines(t *testing.T) {
	chunker := NewClauseChunker(0, DefaultMinChars, DefaultLinesPerPage, analyzer.NewTokenizer(false))

	chunks, err := chunker.Chunk(domain.Document{ID: "doc1"}, sampleContract)
	if err != nil {
		t.Fatal(err)
	}
	for _, chunk := range chunks {
		if chunk.Text == "Signed." {
			t.Errorf("short line should not become a chunk")
		}
	}
}

func TestClauseChunkerGroupsWithinClause(t *testing.T) {
	chunker := NewClauseChunker(100, DefaultMinChars, DefaultLinesPerPage, analyzer.NewTokenizer(false))

	chunks, err := chunker.Chunk(domain.Document{ID: "doc1"}, sampleContract)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %+v", len(chunks), chunks)
	}

	payment := chunks[1]
	if payment.Metadata["clause_type"] != "payment" {
		t.Errorf("expected payment clause, got %v", payment.Metadata["clause_type"])
	}
	want := "Payment Terms: Invoices are payable within thirty days.\nLate payments accrue interest at 1.5% monthly."
	if payment.Text != want {
		t.Errorf("expected grouped text %q, got %q", want, payment.Text)
	}
}

func TestClauseChunkerStandaloneHeading(t *testing.T) {
	chunker := NewClauseChunker(100, DefaultMinChars, DefaultLinesPerPage, analyzer.NewTokenizer(false))

	content := "This contract is made between Acme and TechCorp.\nLIABILITY:\nNeither side is liable for indirect damages."
	chunks, err := chunker.Chunk(domain.Document{ID: "doc1"}, content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Metadata["clause_type"] != ClauseGeneral {
		t.Errorf("expected general clause, got %v", chunks[0].Metadata["clause_type"])
	}
	if chunks[1].Metadata["clause_type"] != "liability" {
		t.Errorf("expected liability clause, got %v", chunks[1].Metadata["clause_type"])
	}
}

func TestClauseChunkerEmptyContent(t *testing.T) {
	chunker := NewClauseChunker(50, DefaultMinChars, DefaultLinesPerPage, analyzer.NewTokenizer(false))

	for _, content := range []string{"", "\n\n  \r\n", "tiny\nlines"} {
		chunks, err := chunker.Chunk(domain.Document{ID: "doc1"}, content)
		if err != nil {
			t.Fatal(err)
		}
		if len(chunks) != 0 {
			t.Errorf("expected no chunks for %q, got %d", content, len(chunks))
		}
	}
}

func TestClauseChunkerLongLine(t *testing.T) {
	chunker := NewClauseChunker(5, DefaultMinChars, DefaultLinesPerPage, analyzer.NewTokenizer(false))

	content := "This is a very long clause with many many words that will exceed the token limit"
	chunks, err := chunker.Chunk(domain.Document{ID: "doc1"}, content)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for an oversized line, got %d", len(chunks))
	}
	if chunks[0].Text != content {
		t.Error("chunk should contain the full oversized line")
	}
}

func TestDetectClause(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"TERMINATION: Either party may terminate.", "termination"},
		{"Payment Terms: Net 30.", "payment"},
		{"Intellectual Property: All rights remain with Licensor.", "intellectual_property"},
		{"Limitation of Liability: Capped at fees paid.", "liability"},
		{"Governing Law: Delaware.", "governing_law"},
		{"Note the fee of $5: payable on signing", ""},
		{"The contractor shall, in all cases and without limitation: comply", ""},
		{"no heading on this line", ""},
	}
	for _, tt := range tests {
		if got := DetectClause(tt.line); got != tt.want {
			t.Errorf("DetectClause(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
