package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raglab-cli/internal/chunkers"
	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

func ingestionParams(mutate func(*domain.ExperimentParams)) *domain.ExperimentConfig {
	p := domain.DefaultParams()
	p.EmbeddingDim = 64
	p.ChunkSizeChild = 64
	p.ChunkOverlap = 10
	if mutate != nil {
		mutate(&p)
	}
	return mustConfig(p)
}

func newTestIngestion(cfg *domain.ExperimentConfig, chunker chunkers.Chunker) (*Ingestion, *fakeVectorStore, *fakeParentStore, *fakeResultStore, *fakeEmbedder) {
	embedder := newFakeEmbedder(cfg.EmbeddingDim)
	vectors := newFakeVectorStore()
	parents := newFakeParentStore()
	results := newFakeResultStore()
	svc := NewIngestion(cfg, chunker, embedder, vectors, parents, results)
	return svc, vectors, parents, results, embedder
}

func TestIngestDocuments_FlatWithHybrid(t *testing.T) {
	cfg := ingestionParams(func(p *domain.ExperimentParams) {
		p.EnableHybrid = true
	})
	svc, vectors, _, results, _ := newTestIngestion(cfg, chunkers.NewFixed(cfg.ChunkSizeChild, cfg.ChunkOverlap))

	n, err := svc.IngestDocuments(context.Background(), []domain.Document{
		{ID: "d1", FileName: "rules.md", Text: "毕业论文查重率应低于15%。图书馆每日开放。食堂提供三餐。"},
	})
	require.NoError(t, err)
	require.Positive(t, n)

	collection := cfg.CollectionName()
	nodes := vectors.collections[collection]
	require.Len(t, nodes, n)
	for _, node := range nodes {
		assert.Len(t, node.Embedding, cfg.EmbeddingDim)
		assert.NotEmpty(t, node.SparseIndices, "hybrid ingestion must sparse-encode")
		assert.Equal(t, "rules.md", node.FileName())
	}
	assert.True(t, vectors.sparseSchema[collection], "collection schema must include sparse vectors")

	files, err := results.ListFiles(context.Background(), collection)
	require.NoError(t, err)
	assert.Equal(t, []string{"rules.md"}, files)
}

func TestIngestDocuments_DenseOnlySkipsSparse(t *testing.T) {
	cfg := ingestionParams(func(p *domain.ExperimentParams) {
		p.EnableHybrid = false
	})
	svc, vectors, _, _, _ := newTestIngestion(cfg, chunkers.NewFixed(cfg.ChunkSizeChild, cfg.ChunkOverlap))

	_, err := svc.IngestDocuments(context.Background(), []domain.Document{
		{ID: "d1", FileName: "a.md", Text: "plain dense only document text"},
	})
	require.NoError(t, err)

	for _, node := range vectors.collections[cfg.CollectionName()] {
		assert.Nil(t, node.SparseIndices)
	}
	assert.False(t, vectors.sparseSchema[cfg.CollectionName()])
}

func TestIngestDocuments_HierarchicalStoresParents(t *testing.T) {
	cfg := ingestionParams(func(p *domain.ExperimentParams) {
		p.ChunkingStrategy = domain.StrategySentence
	})
	svc, vectors, parents, _, _ := newTestIngestion(cfg, chunkers.NewSentence())

	text := "# 规定\n\n毕业论文查重率应低于15%。答辩安排在六月。\n\n# 其他\n\n图书馆每日开放。\n"
	n, err := svc.IngestDocuments(context.Background(), []domain.Document{
		{ID: "d1", FileName: "rules.md", Text: text},
	})
	require.NoError(t, err)
	require.Positive(t, n)

	collection := cfg.CollectionName()
	children := vectors.collections[collection]
	require.NotEmpty(t, children)

	// Every stored child's parent is in the side store with a correct
	// child count.
	counts := make(map[string]int)
	for _, c := range children {
		require.NotEmpty(t, c.ParentID)
		counts[c.ParentID]++
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	records, err := parents.GetMany(context.Background(), collection, ids)
	require.NoError(t, err)
	require.Len(t, records, len(ids))
	for id, rec := range records {
		assert.Equal(t, counts[id], rec.ChildCount)
		assert.Equal(t, "rules.md", rec.FileName)
		assert.NotEmpty(t, rec.HeaderPath)
	}
}

func TestIngestDocuments_DimensionMismatch(t *testing.T) {
	cfg := ingestionParams(func(p *domain.ExperimentParams) {
		p.EmbeddingDim = 128
	})
	// Embedder returns 64 dims while the config expects 128.
	embedder := newFakeEmbedder(64)
	svc := NewIngestion(cfg, chunkers.NewFixed(cfg.ChunkSizeChild, cfg.ChunkOverlap),
		embedder, newFakeVectorStore(), newFakeParentStore(), newFakeResultStore())

	_, err := svc.IngestDocuments(context.Background(), []domain.Document{
		{ID: "d1", FileName: "a.md", Text: "some text"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("alpha document body"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("beta document body"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.pdf"), []byte("binary"), 0o644))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "d.md"), []byte("delta document body"), 0o644))

	cfg := ingestionParams(nil)
	svc, _, _, results, _ := newTestIngestion(cfg, chunkers.NewFixed(cfg.ChunkSizeChild, cfg.ChunkOverlap))

	n, err := svc.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Positive(t, n)

	files, err := results.ListFiles(context.Background(), cfg.CollectionName())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.md", "b.txt", "d.md"}, files)
}

func TestIngestDirectory_NoSupportedFiles(t *testing.T) {
	cfg := ingestionParams(nil)
	svc, _, _, _, _ := newTestIngestion(cfg, chunkers.NewFixed(cfg.ChunkSizeChild, cfg.ChunkOverlap))

	_, err := svc.IngestDirectory(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyDataset))
}

func TestDeleteFile(t *testing.T) {
	cfg := ingestionParams(func(p *domain.ExperimentParams) {
		p.ChunkingStrategy = domain.StrategySentence
	})
	svc, vectors, parents, results, _ := newTestIngestion(cfg, chunkers.NewSentence())

	ctx := context.Background()
	_, err := svc.IngestDocuments(ctx, []domain.Document{
		{ID: "d1", FileName: "keep.md", Text: "# A\n\n保留的内容在这里。\n"},
		{ID: "d2", FileName: "drop.md", Text: "# B\n\n删除的内容在这里。\n"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFile(ctx, "drop.md"))

	collection := cfg.CollectionName()
	for _, node := range vectors.collections[collection] {
		assert.NotEqual(t, "drop.md", node.FileName())
	}
	for _, rec := range parents.records[collection] {
		assert.NotEqual(t, "drop.md", rec.FileName)
	}
	files, err := results.ListFiles(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.md"}, files)
}
