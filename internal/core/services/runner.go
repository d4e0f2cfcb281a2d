package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
	"github.com/custodia-labs/raglab-cli/internal/logger"
)

// BatchRunner drives the ablation matrix: one ingestion per distinct
// fingerprint, then one evaluation pass per configuration. Failures
// degrade rather than abort, a bad query becomes a zero-score record and a
// bad configuration is skipped, so an overnight grid survives transient
// provider errors.
type BatchRunner struct {
	configs  []*domain.ExperimentConfig
	dataset  []domain.DatasetQuery
	registry *Registry
	vectors  driven.VectorStore
	parents  driven.ParentStore
	results  driven.ResultStore
	workers  int
}

// NewBatchRunner builds a runner over the given configurations and labeled
// dataset. workers bounds the per-config evaluation pool; values below 1
// mean sequential.
func NewBatchRunner(
	configs []*domain.ExperimentConfig,
	dataset []domain.DatasetQuery,
	registry *Registry,
	vectors driven.VectorStore,
	parents driven.ParentStore,
	results driven.ResultStore,
	workers int,
) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	return &BatchRunner{
		configs:  configs,
		dataset:  dataset,
		registry: registry,
		vectors:  vectors,
		parents:  parents,
		results:  results,
		workers:  workers,
	}
}

// RunIngestion ingests the data directory once per distinct fingerprint.
// Collections that already hold points are skipped, so re-running a grid
// never re-embeds. Per-group failures are joined and returned after every
// group has been attempted.
func (r *BatchRunner) RunIngestion(ctx context.Context) error {
	seen := make(map[string]bool, len(r.configs))
	var errs []error
	for _, cfg := range r.configs {
		fp := cfg.Fingerprint()
		if seen[fp] {
			continue
		}
		seen[fp] = true

		collection := cfg.CollectionName()
		count, err := r.vectors.PointCount(ctx, collection)
		if err != nil {
			errs = append(errs, fmt.Errorf("point count %s: %w", collection, err))
			continue
		}
		if count > 0 {
			logger.Info("collection %s already holds %d points, skipping ingestion", collection, count)
			continue
		}

		if err := r.ingestGroup(ctx, cfg); err != nil {
			logger.Error("ingestion for %s failed: %v", collection, err)
			errs = append(errs, fmt.Errorf("ingest %s: %w", collection, err))
		}
	}
	return errors.Join(errs...)
}

func (r *BatchRunner) ingestGroup(ctx context.Context, cfg *domain.ExperimentConfig) error {
	embedder, err := r.registry.Embedding(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	chunker, err := r.registry.Chunker(cfg, embedder)
	if err != nil {
		return err
	}

	ing := NewIngestion(cfg, chunker, embedder, r.vectors, r.parents, r.results)
	n, err := ing.IngestDirectory(ctx, cfg.DataDir)
	if err != nil {
		return err
	}
	logger.Info("fingerprint %s: %d nodes ingested", cfg.Fingerprint(), n)
	return nil
}

// RunEvaluation evaluates every configuration against the dataset. limit
// restricts the dataset to its first rows when positive. A configuration
// that cannot even be constructed is skipped; its absence shows in the
// summary count.
func (r *BatchRunner) RunEvaluation(ctx context.Context, limit int) ([]domain.Summary, []domain.EvaluationRecord, error) {
	queries := r.dataset
	if limit > 0 && limit < len(queries) {
		queries = queries[:limit]
	}
	if len(queries) == 0 {
		return nil, nil, fmt.Errorf("%w: no evaluation queries", domain.ErrEmptyDataset)
	}

	summaries := make([]domain.Summary, 0, len(r.configs))
	details := make([]domain.EvaluationRecord, 0, len(r.configs)*len(queries))
	for i, cfg := range r.configs {
		logger.Section(fmt.Sprintf("Evaluating %s (%d/%d)", cfg.ExperimentID, i+1, len(r.configs)))
		summary, records, err := r.evaluateConfig(ctx, cfg, queries)
		if err != nil {
			if ctx.Err() != nil {
				return summaries, details, ctx.Err()
			}
			logger.Error("configuration %s skipped: %v", cfg.ExperimentID, err)
			continue
		}
		summaries = append(summaries, summary)
		details = append(details, records...)
	}
	return summaries, details, nil
}

func (r *BatchRunner) evaluateConfig(ctx context.Context, cfg *domain.ExperimentConfig, queries []domain.DatasetQuery) (domain.Summary, []domain.EvaluationRecord, error) {
	embedder, err := r.registry.Embedding(cfg)
	if err != nil {
		return domain.Summary{}, nil, err
	}
	defer embedder.Close()

	var reranker driven.RerankerService
	if cfg.EnableRerank {
		reranker, err = r.registry.Reranker(cfg)
		if err != nil {
			return domain.Summary{}, nil, err
		}
	}

	retriever := NewRetrieval(cfg, embedder, reranker, r.vectors, r.parents)
	judge := NewSemanticJudge(embedder)

	records := make([]domain.EvaluationRecord, len(queries))
	latencies := make([]float64, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, q := range queries {
		g.Go(func() error {
			start := time.Now()
			records[i] = r.evaluateQuery(gctx, cfg, retriever, judge, q)
			latencies[i] = float64(time.Since(start).Microseconds()) / 1000
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Summary{}, nil, err
	}
	if ctx.Err() != nil {
		return domain.Summary{}, nil, ctx.Err()
	}

	return summarize(cfg, records, latencies), records, nil
}

// evaluateQuery scores one query. Failures never propagate; they become a
// zero-score record carrying the error text.
func (r *BatchRunner) evaluateQuery(ctx context.Context, cfg *domain.ExperimentConfig, retriever *Retrieval, judge *SemanticJudge, q domain.DatasetQuery) domain.EvaluationRecord {
	rec := domain.EvaluationRecord{
		ExperimentID: cfg.ExperimentID,
		Description:  cfg.Description,
		Category:     q.Category,
		Question:     q.Question,
		GroundTruth:  q.GroundTruth,
		RetrievedTop: "N/A",
	}

	nodes, err := retriever.Retrieve(ctx, q.Question)
	if err != nil {
		logger.Warn("query %q degraded: %v", q.Question, err)
		rec.Error = err.Error()
		return rec
	}
	if len(nodes) == 0 {
		return rec
	}

	relevance := make([]int, len(nodes))
	hitRank := 0
	previews := make([]string, 0, len(nodes))
	for rank, sn := range nodes {
		previews = append(previews, snippet(sn.Node.Text))
		matched, err := judge.Matches(ctx, q.GroundTruth, sn.Node.Text)
		if err != nil {
			logger.Warn("judge failed for %q: %v", q.Question, err)
			rec.Error = err.Error()
			return rec
		}
		if matched {
			relevance[rank] = 1
			if hitRank == 0 {
				hitRank = rank + 1
			}
		}
	}

	rec.RetrievedTop = strings.Join(previews, "\n")
	if hitRank > 0 {
		rec.Hit = 1
	}
	rec.MRR = domain.MRR(hitRank)
	rec.NDCG = domain.NDCG(cfg.RerankTopK, relevance)
	return rec
}

func summarize(cfg *domain.ExperimentConfig, records []domain.EvaluationRecord, latencies []float64) domain.Summary {
	s := domain.Summary{
		ExperimentID:     cfg.ExperimentID,
		Description:      cfg.Description,
		ChunkingStrategy: cfg.ChunkingStrategy,
		ChunkSizeChild:   cfg.ChunkSizeChild,
		ChunkOverlap:     cfg.ChunkOverlap,
		EnableHybrid:     cfg.EnableHybrid,
		EnableAutoMerge:  cfg.EnableAutoMerge,
		EnableRerank:     cfg.EnableRerank,
		CollectionName:   cfg.CollectionName(),
		TotalQueries:     len(records),
	}
	if len(records) == 0 {
		return s
	}
	for _, rec := range records {
		s.HitRate += float64(rec.Hit)
		s.MRR += rec.MRR
		s.NDCG += rec.NDCG
	}
	n := float64(len(records))
	s.HitRate /= n
	s.MRR /= n
	s.NDCG /= n
	for _, l := range latencies {
		s.AvgLatencyMS += l
	}
	s.AvgLatencyMS /= n
	return s
}
