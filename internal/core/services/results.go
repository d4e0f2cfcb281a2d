package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
	"github.com/custodia-labs/raglab-cli/internal/dataset"
	"github.com/custodia-labs/raglab-cli/internal/logger"
)

// RunMeta is the sidecar record written next to the CSV reports of one
// batch run.
type RunMeta struct {
	Tag            string    `json:"tag"`
	StartedAt      time.Time `json:"started_at"`
	Configurations int       `json:"configurations"`
	Queries        int       `json:"queries"`
	BestExperiment string    `json:"best_experiment,omitempty"`
	BestHitRate    float64   `json:"best_hit_rate,omitempty"`
}

// RunArtifacts lists the files one Persist call produced.
type RunArtifacts struct {
	SummaryCSV string
	DetailsCSV string
	MetaJSON   string
}

// ResultsCollector persists one batch run twice: rows into the result
// store for history queries, and timestamped CSV/JSON files for
// spreadsheet work.
type ResultsCollector struct {
	store  driven.ResultStore
	outDir string

	// now is swappable for tests.
	now func() time.Time
}

// NewResultsCollector writes report files under outDir.
func NewResultsCollector(store driven.ResultStore, outDir string) *ResultsCollector {
	return &ResultsCollector{store: store, outDir: outDir, now: time.Now}
}

// Persist saves summaries and details to the store and writes the CSV and
// meta files. The returned artifact paths are ready to print.
func (c *ResultsCollector) Persist(ctx context.Context, summaries []domain.Summary, details []domain.EvaluationRecord) (RunArtifacts, error) {
	started := c.now()
	tag := started.Format("20060102_150405")

	if err := c.store.SaveSummaries(ctx, tag, summaries); err != nil {
		return RunArtifacts{}, fmt.Errorf("save summaries: %w", err)
	}
	if err := c.store.SaveDetails(ctx, tag, details); err != nil {
		return RunArtifacts{}, fmt.Errorf("save details: %w", err)
	}

	if err := os.MkdirAll(c.outDir, 0o755); err != nil {
		return RunArtifacts{}, fmt.Errorf("create output dir: %w", err)
	}
	art := RunArtifacts{
		SummaryCSV: filepath.Join(c.outDir, "summary_"+tag+".csv"),
		DetailsCSV: filepath.Join(c.outDir, "details_"+tag+".csv"),
		MetaJSON:   filepath.Join(c.outDir, "meta_"+tag+".json"),
	}
	if err := dataset.WriteSummaryCSV(art.SummaryCSV, summaries); err != nil {
		return RunArtifacts{}, fmt.Errorf("write summary csv: %w", err)
	}
	if err := dataset.WriteDetailsCSV(art.DetailsCSV, details); err != nil {
		return RunArtifacts{}, fmt.Errorf("write details csv: %w", err)
	}

	meta := RunMeta{
		Tag:            tag,
		StartedAt:      started,
		Configurations: len(summaries),
		Queries:        countQueries(summaries),
	}
	if best := bestByHitRate(summaries); best != nil {
		meta.BestExperiment = best.ExperimentID
		meta.BestHitRate = best.HitRate
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return RunArtifacts{}, fmt.Errorf("marshal meta: %w", err)
	}
	if err := os.WriteFile(art.MetaJSON, data, 0o644); err != nil {
		return RunArtifacts{}, fmt.Errorf("write meta: %w", err)
	}

	logger.Info("results written to %s", c.outDir)
	return art, nil
}

// History returns all persisted summary rows, newest first.
func (c *ResultsCollector) History(ctx context.Context) ([]domain.Summary, error) {
	return c.store.LoadSummaries(ctx)
}

// bestByHitRate picks the summary with the highest hit rate, breaking ties
// by MRR. Nil when summaries is empty.
func bestByHitRate(summaries []domain.Summary) *domain.Summary {
	var best *domain.Summary
	for i := range summaries {
		s := &summaries[i]
		if best == nil || s.HitRate > best.HitRate ||
			(s.HitRate == best.HitRate && s.MRR > best.MRR) {
			best = s
		}
	}
	return best
}

func countQueries(summaries []domain.Summary) int {
	if len(summaries) == 0 {
		return 0
	}
	return summaries[0].TotalQueries
}
