package services

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

func TestResultsCollector_Persist(t *testing.T) {
	store := newFakeResultStore()
	outDir := t.TempDir()
	collector := NewResultsCollector(store, outDir)
	collector.now = func() time.Time {
		return time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	}

	summaries := []domain.Summary{
		{ExperimentID: "ablation_0001", HitRate: 0.5, MRR: 0.4, TotalQueries: 4},
		{ExperimentID: "ablation_0002", HitRate: 0.75, MRR: 0.6, TotalQueries: 4},
	}
	details := []domain.EvaluationRecord{
		{ExperimentID: "ablation_0001", Question: "q1", Hit: 1},
	}

	art, err := collector.Persist(context.Background(), summaries, details)
	require.NoError(t, err)

	assert.FileExists(t, art.SummaryCSV)
	assert.FileExists(t, art.DetailsCSV)
	assert.FileExists(t, art.MetaJSON)
	assert.Contains(t, art.SummaryCSV, "summary_20260826_103000.csv")

	data, err := os.ReadFile(art.MetaJSON)
	require.NoError(t, err)
	var meta RunMeta
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "20260826_103000", meta.Tag)
	assert.Equal(t, 2, meta.Configurations)
	assert.Equal(t, 4, meta.Queries)
	assert.Equal(t, "ablation_0002", meta.BestExperiment)
	assert.InDelta(t, 0.75, meta.BestHitRate, 1e-9)

	assert.Len(t, store.summaries, 2)
	assert.Len(t, store.details, 1)
}

func TestResultsCollector_History(t *testing.T) {
	store := newFakeResultStore()
	require.NoError(t, store.SaveSummaries(context.Background(), "t1", []domain.Summary{
		{ExperimentID: "old_run"},
	}))

	collector := NewResultsCollector(store, t.TempDir())
	got, err := collector.History(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "old_run", got[0].ExperimentID)
}

func TestBestByHitRate_TieBreaksOnMRR(t *testing.T) {
	best := bestByHitRate([]domain.Summary{
		{ExperimentID: "a", HitRate: 0.5, MRR: 0.3},
		{ExperimentID: "b", HitRate: 0.5, MRR: 0.45},
		{ExperimentID: "c", HitRate: 0.4, MRR: 0.9},
	})
	require.NotNil(t, best)
	assert.Equal(t, "b", best.ExperimentID)

	assert.Nil(t, bestByHitRate(nil))
}
