package chunkers

import (
	"context"

	"github.com/google/uuid"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

// Default window parameters for the fixed strategy.
const (
	DefaultChunkSize = 256
	DefaultOverlap   = 50
)

// Fixed splits text by a hard rune-count window with fixed overlap. No
// semantic awareness; it is the performance/quality baseline every other
// strategy is measured against.
type Fixed struct {
	chunkSize int
	overlap   int
}

// NewFixed creates a fixed-window chunker. Non-positive sizes fall back to
// the defaults; an overlap reaching the chunk size is clamped to a quarter
// of it.
func NewFixed(chunkSize, overlap int) *Fixed {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Fixed{chunkSize: chunkSize, overlap: overlap}
}

// Name returns the strategy name.
func (f *Fixed) Name() string { return domain.StrategyFixed }

// Chunk splits each document into overlapping rune windows.
func (f *Fixed) Chunk(_ context.Context, docs []domain.Document) (*Result, error) {
	res := &Result{}

	for _, doc := range docs {
		if doc.Text == "" {
			continue
		}
		runes := []rune(doc.Text)
		step := f.chunkSize - f.overlap

		position := 0
		for start := 0; start < len(runes); start += step {
			end := start + f.chunkSize
			if end > len(runes) {
				end = len(runes)
			}

			md := baseMetadata(doc)
			md[domain.MetaNodeType] = domain.NodeTypeFlat
			md["position"] = position

			res.Nodes = append(res.Nodes, domain.Node{
				ID:       uuid.New().String(),
				Text:     string(runes[start:end]),
				Metadata: md,
			})
			position++

			if end == len(runes) {
				break
			}
		}
	}

	return res, nil
}
