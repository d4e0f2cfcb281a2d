package chunkers

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
)

// Mixed-script sentence pattern: everything up to and including a terminal
// punctuation mark, full-width forms included.
var semanticSentenceRe = regexp.MustCompile(`[^.?!;。？！；\n]+[.?!;。？！；]?`)

// Semantic inserts a chunk boundary wherever the cosine distance between
// adjacent (buffered) sentence embeddings exceeds a percentile-based
// breakpoint threshold. It is the only chunker with an external dependency
// and the only one whose chunk sizes are not configured directly.
type Semantic struct {
	embedder driven.EmbeddingService

	// breakpointPercentile is the distance percentile above which a
	// boundary is inserted, e.g. 95.
	breakpointPercentile int

	// bufferSize is how many neighboring sentences are joined on each
	// side before embedding, smoothing out single-sentence noise.
	bufferSize int
}

// NewSemantic creates a semantic-breakpoint chunker. The embedder is
// required; threshold and buffer fall back to 95 and 1.
func NewSemantic(embedder driven.EmbeddingService, breakpointPercentile, bufferSize int) (*Semantic, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: semantic chunker requires an embedding service", domain.ErrInvalidConfig)
	}
	if breakpointPercentile <= 0 || breakpointPercentile > 100 {
		breakpointPercentile = 95
	}
	if bufferSize < 0 {
		bufferSize = 1
	}
	return &Semantic{
		embedder:             embedder,
		breakpointPercentile: breakpointPercentile,
		bufferSize:           bufferSize,
	}, nil
}

// Name returns the strategy name.
func (s *Semantic) Name() string { return domain.StrategySemantic }

// Chunk embeds buffered sentence windows and cuts wherever the adjacent
// distance is above the breakpoint percentile.
func (s *Semantic) Chunk(ctx context.Context, docs []domain.Document) (*Result, error) {
	res := &Result{}

	for _, doc := range docs {
		sentences := SplitSentencesLocale(doc.Text)
		if len(sentences) == 0 {
			continue
		}

		chunks, err := s.chunkSentences(ctx, sentences)
		if err != nil {
			return nil, fmt.Errorf("semantic chunking %s: %w", doc.FileName, err)
		}

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

func (s *Semantic) chunkSentences(ctx context.Context, sentences []string) ([]string, error) {
	if len(sentences) == 1 {
		return sentences, nil
	}

	windows := make([]string, len(sentences))
	for i := range sentences {
		lo := i - s.bufferSize
		if lo < 0 {
			lo = 0
		}
		hi := i + s.bufferSize + 1
		if hi > len(sentences) {
			hi = len(sentences)
		}
		windows[i] = strings.Join(sentences[lo:hi], " ")
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, windows)
	if err != nil {
		return nil, fmt.Errorf("embed sentence windows: %w", err)
	}

	distances := make([]float64, len(embeddings)-1)
	for i := 0; i+1 < len(embeddings); i++ {
		distances[i] = 1 - domain.CosineSimilarity(embeddings[i], embeddings[i+1])
	}

	breakpoint := percentile(distances, float64(s.breakpointPercentile))

	var chunks []string
	var current []string
	for i, sent := range sentences {
		current = append(current, sent)
		if i < len(distances) && distances[i] > breakpoint {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks, nil
}

// percentile computes the p-th percentile with linear interpolation
// between closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

// SplitSentencesLocale is the locale-aware sentence splitter used by the
// semantic strategy: common terminal punctuation, full-width forms
// included, splits within each paragraph; a paragraph without any match is
// kept whole.
func SplitSentencesLocale(text string) []string {
	var sentences []string
	for _, paragraph := range strings.Split(text, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		matches := semanticSentenceRe.FindAllString(paragraph, -1)
		if len(matches) == 0 {
			sentences = append(sentences, paragraph)
			continue
		}
		for _, m := range matches {
			if m = strings.TrimSpace(m); m != "" {
				sentences = append(sentences, m)
			}
		}
	}
	return sentences
}
