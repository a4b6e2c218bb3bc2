package chunker

import (
	"strings"
	"unicode"

	"contractrag/internal/domain"
	"contractrag/internal/port"
)

const (
	ClauseGeneral = "general"

	DefaultMinChars     = 20
	DefaultLinesPerPage = 3
)

// ClauseChunker splits contract text into clause chunks. Every non-blank
// line longer than minChars is a candidate; consecutive candidates are merged
// while they fit in maxTokens and share a clause heading. A maxTokens of zero
// keeps one line per chunk.
type ClauseChunker struct {
	maxTokens    int
	minChars     int
	linesPerPage int
	tokenizer    port.Tokenizer
}

var _ port.Chunker = (*ClauseChunker)(nil)

func NewClauseChunker(maxTokens, minChars, linesPerPage int, tokenizer port.Tokenizer) *ClauseChunker {
	if linesPerPage <= 0 {
		linesPerPage = DefaultLinesPerPage
	}
	return &ClauseChunker{
		maxTokens:    maxTokens,
		minChars:     minChars,
		linesPerPage: linesPerPage,
		tokenizer:    tokenizer,
	}
}

type clauseLine struct {
	text    string
	index   int // position among non-blank lines
	clause  string
	heading bool
	tokens  int
}

func (c *ClauseChunker) Chunk(doc domain.Document, content string) ([]domain.ChunkInput, error) {
	lines := c.candidateLines(content)
	if len(lines) == 0 {
		return nil, nil
	}

	var chunks []domain.ChunkInput
	start := 0
	for start < len(lines) {
		end := start + 1
		tokens := lines[start].tokens
		for c.maxTokens > 0 && end < len(lines) {
			next := lines[end]
			if next.heading || next.clause != lines[start].clause {
				break
			}
			if tokens+next.tokens > c.maxTokens {
				break
			}
			tokens += next.tokens
			end++
		}
		chunks = append(chunks, c.build(doc, lines[start:end]))
		start = end
	}
	return chunks, nil
}

func (c *ClauseChunker) candidateLines(content string) []clauseLine {
	raw := strings.Split(strings.ReplaceAll(content, "\r", ""), "\n")

	var out []clauseLine
	index := 0
	current := ""
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := index
		index++

		// Lines after a heading belong to its clause until the next one,
		// even when the heading stands alone on a short line.
		clause := DetectClause(line)
		if clause != "" {
			current = clause
		}
		if len(line) <= c.minChars {
			continue
		}
		out = append(out, clauseLine{
			text:    line,
			index:   idx,
			clause:  current,
			heading: clause != "",
			tokens:  c.tokenizer.CountTokens(line),
		})
	}
	return out
}

func (c *ClauseChunker) build(doc domain.Document, lines []clauseLine) domain.ChunkInput {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.text
	}

	clause := lines[0].clause
	if clause == "" {
		clause = ClauseGeneral
	}

	return domain.ChunkInput{
		Text: strings.Join(texts, "\n"),
		Metadata: map[string]any{
			"page":          lines[0].index/c.linesPerPage + 1,
			"contract_name": doc.Name,
			"clause_type":   clause,
		},
	}
}

var clauseKeywords = []struct {
	prefix string
	clause string
}{
	{"terminat", "termination"},
	{"liabilit", "liability"},
	{"indemn", "liability"},
	{"payment", "payment"},
	{"fees", "payment"},
	{"confidential", "confidentiality"},
	{"non-disclosure", "confidentiality"},
	{"intellectual property", "intellectual_property"},
}

// DetectClause returns the clause type named by a leading heading such as
// "TERMINATION:" or "Payment Terms:", or "" when the line has none.
func DetectClause(line string) string {
	head, _, found := strings.Cut(line, ":")
	if !found {
		return ""
	}
	head = strings.TrimSpace(head)
	if head == "" || len(strings.Fields(head)) > 4 {
		return ""
	}
	for _, r := range head {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) && r != '-' && r != '&' {
			return ""
		}
	}

	lower := strings.ToLower(head)
	for _, kw := range clauseKeywords {
		if strings.HasPrefix(lower, kw.prefix) || strings.Contains(lower, " "+kw.prefix) {
			return kw.clause
		}
	}
	return strings.Join(strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	}), "_")
}
