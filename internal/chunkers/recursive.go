package chunkers

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

// Separator ladder in descending granularity: paragraph, line, terminal
// punctuation (full-width forms first for Chinese text), clause
// punctuation, space, then single characters as the last resort.
var recursiveSeparators = []string{
	"\n\n",
	"\n",
	"。", "？", "！", "；",
	".", "?", "!", ";",
	"，", "、", "：", ",",
	" ",
	"",
}

// Recursive attempts separators in descending granularity until every
// piece fits the size budget, then packs pieces back into chunks with
// overlap. Separators are kept attached to the preceding piece so the
// chunks stay readable.
type Recursive struct {
	chunkSize int
	overlap   int
}

// NewRecursive creates a recursive-separator chunker with the same
// clamping rules as the fixed strategy.
func NewRecursive(chunkSize, overlap int) *Recursive {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Recursive{chunkSize: chunkSize, overlap: overlap}
}

// Name returns the strategy name.
func (r *Recursive) Name() string { return domain.StrategyRecursive }

// Chunk splits each document along the separator ladder.
func (r *Recursive) Chunk(_ context.Context, docs []domain.Document) (*Result, error) {
	res := &Result{}

	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}

		pieces := r.split(doc.Text, recursiveSeparators)
		chunks := r.pack(pieces)

		for i, chunk := range chunks {
			md := baseMetadata(doc)
			md[domain.MetaNodeType] = domain.NodeTypeFlat
			md["position"] = i

			res.Nodes = append(res.Nodes, domain.Node{
				ID:       uuid.New().String(),
				Text:     chunk,
				Metadata: md,
			})
		}
	}

	return res, nil
}

// split cuts text along the first separator of the ladder that occurs in
// it, recursing into any piece still over the size budget with the finer
// separators that remain.
func (r *Recursive) split(text string, separators []string) []string {
	if len([]rune(text)) <= r.chunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return []string{text}
	}

	sep := separators[0]
	rest := separators[1:]

	if sep == "" {
		// Character-level fallback: hard windows.
		runes := []rune(text)
		var out []string
		for start := 0; start < len(runes); start += r.chunkSize {
			end := start + r.chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			out = append(out, string(runes[start:end]))
		}
		return out
	}

	if !strings.Contains(text, sep) {
		return r.split(text, rest)
	}

	parts := strings.SplitAfter(text, sep)
	var out []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len([]rune(part)) <= r.chunkSize {
			out = append(out, part)
			continue
		}
		out = append(out, r.split(part, rest)...)
	}
	return out
}

// pack greedily merges adjacent pieces into chunks under the size budget,
// seeding each new chunk with the overlap tail of the previous one.
func (r *Recursive) pack(pieces []string) []string {
	var chunks []string
	var current []rune

	flush := func() {
		text := strings.TrimSpace(string(current))
		if text != "" {
			chunks = append(chunks, text)
		}
	}

	for _, piece := range pieces {
		runes := []rune(piece)
		if len(current)+len(runes) > r.chunkSize && len(current) > 0 {
			flush()
			if r.overlap > 0 && len(current) > r.overlap {
				current = append([]rune(nil), current[len(current)-r.overlap:]...)
			} else {
				current = current[:0]
			}
		}
		current = append(current, runes...)
	}
	flush()

	return chunks
}
