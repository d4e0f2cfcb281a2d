package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
	"github.com/custodia-labs/raglab-cli/internal/logger"
	"github.com/custodia-labs/raglab-cli/internal/sparse"
)

// minSentenceTopK is the floor applied to retrieval_top_k under the
// sentence strategy. Single-sentence children are tiny, so a handful of
// candidates rarely covers one answer span.
const minSentenceTopK = 10

// snippetRunes caps the provenance snippet length in debug output.
const snippetRunes = 200

// Retrieval answers queries for one experiment configuration. The
// candidate flow is fixed: vector search, optional auto-merge to parents,
// optional rerank, truncate.
type Retrieval struct {
	cfg      *domain.ExperimentConfig
	embedder driven.EmbeddingService
	reranker driven.RerankerService
	vectors  driven.VectorStore
	parents  driven.ParentStore
	encoder  *sparse.Encoder
}

// NewRetrieval wires a retrieval pipeline. reranker may be nil when the
// configuration has reranking disabled.
func NewRetrieval(
	cfg *domain.ExperimentConfig,
	embedder driven.EmbeddingService,
	reranker driven.RerankerService,
	vectors driven.VectorStore,
	parents driven.ParentStore,
) *Retrieval {
	return &Retrieval{
		cfg:      cfg,
		embedder: embedder,
		reranker: reranker,
		vectors:  vectors,
		parents:  parents,
		encoder:  sparse.NewEncoder(),
	}
}

// Retrieve returns the final ranked candidates for query. Any stage
// failure propagates; there is no silent fallback between stages.
func (s *Retrieval) Retrieve(ctx context.Context, query string) ([]domain.ScoredNode, error) {
	candidates, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if s.cfg.EnableAutoMerge {
		candidates, err = s.autoMerge(ctx, candidates)
		if err != nil {
			return nil, err
		}
	}

	if s.cfg.EnableRerank && s.reranker != nil {
		return s.rerank(ctx, query, candidates)
	}
	if len(candidates) > s.cfg.RerankTopK {
		candidates = candidates[:s.cfg.RerankTopK]
	}
	return candidates, nil
}

// RetrieveDebug returns the concatenated context for answer synthesis plus
// one provenance record per returned node.
func (s *Retrieval) RetrieveDebug(ctx context.Context, query string) (string, []domain.DebugChunk, error) {
	nodes, err := s.Retrieve(ctx, query)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	chunks := make([]domain.DebugChunk, 0, len(nodes))
	for i, sn := range nodes {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(sn.Node.Text)
		chunks = append(chunks, domain.DebugChunk{
			Text:       snippet(sn.Node.Text),
			Score:      round4(sn.Score),
			SourceFile: sn.Node.FileName(),
		})
	}
	return b.String(), chunks, nil
}

// search runs the first-stage vector query.
func (s *Retrieval) search(ctx context.Context, query string) ([]domain.ScoredNode, error) {
	dense, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	q := driven.VectorQuery{
		Dense: dense,
		Mode:  driven.QueryModeDense,
		Limit: s.effectiveTopK(),
	}
	if s.cfg.EnableHybrid {
		q.Mode = driven.QueryModeHybrid
		q.Alpha = s.cfg.HybridAlpha
		q.SparseIndices, q.SparseValues = s.encoder.EncodeQuery(query)
	}

	logger.Debug("vector query mode=%s limit=%d", q.Mode, q.Limit)
	candidates, err := s.vectors.Query(ctx, s.cfg.CollectionName(), q)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	logger.Debug("first stage returned %d candidates", len(candidates))
	return candidates, nil
}

// effectiveTopK applies the sentence-strategy floor.
func (s *Retrieval) effectiveTopK() int {
	k := s.cfg.RetrievalTopK
	if s.cfg.ChunkingStrategy == domain.StrategySentence && k < minSentenceTopK {
		k = minSentenceTopK
	}
	return k
}

// autoMerge replaces groups of sibling children with their parent when
// enough of the parent's children were retrieved. Candidates without a
// parent, and collections without parent records, pass through untouched.
func (s *Retrieval) autoMerge(ctx context.Context, candidates []domain.ScoredNode) ([]domain.ScoredNode, error) {
	groups := make(map[string][]domain.ScoredNode)
	var order []string
	var flat []domain.ScoredNode
	for _, sn := range candidates {
		pid := sn.Node.ParentID
		if pid == "" {
			flat = append(flat, sn)
			continue
		}
		if _, ok := groups[pid]; !ok {
			order = append(order, pid)
		}
		groups[pid] = append(groups[pid], sn)
	}
	if len(groups) == 0 {
		return candidates, nil
	}

	records, err := s.parents.GetMany(ctx, s.cfg.CollectionName(), order)
	if err != nil {
		return nil, fmt.Errorf("fetch parents: %w", err)
	}

	merged := flat
	for _, pid := range order {
		siblings := groups[pid]
		rec, ok := records[pid]
		if !ok || !shouldMerge(len(siblings), rec.ChildCount, s.cfg.MergeThreshold) {
			merged = append(merged, siblings...)
			continue
		}
		score := siblings[0].Score
		for _, sn := range siblings[1:] {
			if sn.Score > score {
				score = sn.Score
			}
		}
		logger.Debug("merged %d/%d children into parent %s", len(siblings), rec.ChildCount, pid)
		merged = append(merged, domain.ScoredNode{
			Node: domain.Node{
				ID:   rec.ID,
				Text: rec.Text,
				Metadata: map[string]any{
					domain.MetaFileName:   rec.FileName,
					domain.MetaHeaderPath: rec.HeaderPath,
					domain.MetaNodeType:   domain.NodeTypeParent,
				},
			},
			Score: score,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged, nil
}

// shouldMerge is the merge policy: merge when the retrieved fraction of the
// parent's children reaches the threshold. Parents with no recorded
// children never merge.
func shouldMerge(matched, total int, threshold float64) bool {
	if total <= 0 {
		return false
	}
	return float64(matched)/float64(total) >= threshold
}

// rerank re-scores candidates with the cross-encoder and keeps the top
// rerank_top_k in the reranker's order.
func (s *Retrieval) rerank(ctx context.Context, query string, candidates []domain.ScoredNode) ([]domain.ScoredNode, error) {
	docs := make([]string, len(candidates))
	for i := range candidates {
		docs[i] = candidates[i].Node.Text
	}
	results, err := s.reranker.Rerank(ctx, query, docs, s.cfg.RerankTopK)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	out := make([]domain.ScoredNode, 0, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(candidates) {
			return nil, fmt.Errorf("rerank: index %d out of range for %d candidates", r.Index, len(candidates))
		}
		out = append(out, domain.ScoredNode{Node: candidates[r.Index].Node, Score: r.Score})
	}
	logger.Debug("reranked %d candidates down to %d", len(candidates), len(out))
	return out, nil
}

func snippet(text string) string {
	r := []rune(text)
	if len(r) <= snippetRunes {
		return text
	}
	return string(r[:snippetRunes]) + "…"
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
