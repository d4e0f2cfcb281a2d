package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
)

// judgeSimilarityThreshold is the cosine similarity above which two texts
// count as a semantic match when the substring fast path misses.
const judgeSimilarityThreshold = 0.85

// SemanticJudge decides whether a retrieved chunk contains the ground
// truth. The cheap path is a normalized substring check; the fallback
// embeds both texts and compares cosine similarity. Embeddings are cached
// since ground truths repeat across the candidate list.
type SemanticJudge struct {
	embedder driven.EmbeddingService

	mu    sync.Mutex
	cache map[string][]float32
}

// NewSemanticJudge returns a judge backed by embedder. A nil embedder
// disables the similarity fallback; only the substring path runs.
func NewSemanticJudge(embedder driven.EmbeddingService) *SemanticJudge {
	return &SemanticJudge{
		embedder: embedder,
		cache:    make(map[string][]float32),
	}
}

// Matches reports whether chunk contains (or semantically covers) the
// ground truth. Embedding failures propagate so the caller can degrade
// the query instead of silently scoring a miss.
func (j *SemanticJudge) Matches(ctx context.Context, groundTruth, chunk string) (bool, error) {
	gt := normalizeForMatch(groundTruth)
	if gt == "" {
		return false, nil
	}
	if strings.Contains(normalizeForMatch(chunk), gt) {
		return true, nil
	}
	if j.embedder == nil {
		return false, nil
	}

	gtVec, err := j.embed(ctx, groundTruth)
	if err != nil {
		return false, fmt.Errorf("embed ground truth: %w", err)
	}
	chunkVec, err := j.embed(ctx, chunk)
	if err != nil {
		return false, fmt.Errorf("embed chunk: %w", err)
	}
	return domain.CosineSimilarity(gtVec, chunkVec) > judgeSimilarityThreshold, nil
}

func (j *SemanticJudge) embed(ctx context.Context, text string) ([]float32, error) {
	j.mu.Lock()
	if v, ok := j.cache[text]; ok {
		j.mu.Unlock()
		return v, nil
	}
	j.mu.Unlock()

	v, err := j.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	j.mu.Lock()
	j.cache[text] = v
	j.mu.Unlock()
	return v, nil
}

// normalizeForMatch collapses whitespace and lowercases so formatting
// differences between dataset and chunk text do not mask a hit.
func normalizeForMatch(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
