package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raglab-cli/internal/core/services"
)

const testExperimentYAML = `experiment:
  id: cli_test
model:
  embedding_provider: stub
  embedding_dim: 8
  reranker_provider: stub
rag:
  chunking_strategy: fixed
  chunk_size_child: 64
  chunk_overlap: 10
retrieval:
  enable_hybrid: false
  enable_auto_merge: false
  enable_rerank: false
`

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest", ingestCmd.Use)
}

func TestIngestCmd_HasWatchFlag(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("watch")
	require.NotNil(t, flag)
	assert.Equal(t, "w", flag.Shorthand)
	assert.Equal(t, "false", flag.DefValue)
}

func TestIngestCmd_IngestsCorpus(t *testing.T) {
	fq := setupTestRuntime(t)

	writeTestFile(t, settings.DataDir, "rules.md", "# 规章\n\n毕业论文查重率应低于15%。\n")
	writeTestFile(t, settings.DataDir, "notes.txt", "图书馆上午八点开放。\n")
	expPath := writeTestFile(t, t.TempDir(), "experiment.yaml", testExperimentYAML)

	out, err := executeCommand("ingest", "-e", expPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested")
	assert.Contains(t, out, "cli_test")

	cfg, err := loadExperiment(expPath)
	require.NoError(t, err)
	assert.Equal(t, 2, fq.pointCount(cfg.CollectionName()))
}

func TestIngestCmd_EmptyCorpusFails(t *testing.T) {
	setupTestRuntime(t)
	expPath := writeTestFile(t, t.TempDir(), "experiment.yaml", testExperimentYAML)

	_, err := executeCommand("ingest", "-e", expPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty dataset")
}

func TestIngestCmd_UnknownProviderFails(t *testing.T) {
	setupTestRuntime(t)
	writeTestFile(t, settings.DataDir, "rules.md", "内容。\n")
	expPath := writeTestFile(t, t.TempDir(), "experiment.yaml",
		"model:\n  embedding_provider: nosuch\n")

	_, err := executeCommand("ingest", "-e", expPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown component")
}

// Watch handling is tested against the event handler directly; fsnotify
// delivery timing is the library's problem, not ours.
func TestWatchEventHandling(t *testing.T) {
	fq := setupTestRuntime(t)
	expPath := writeTestFile(t, t.TempDir(), "experiment.yaml", testExperimentYAML)

	cfg, err := loadExperiment(expPath)
	require.NoError(t, err)

	st, err := openStores()
	require.NoError(t, err)
	defer st.close()

	embedder, err := registry.Embedding(cfg)
	require.NoError(t, err)
	chunker, err := registry.Chunker(cfg, embedder)
	require.NoError(t, err)
	ing := services.NewIngestion(cfg, chunker, embedder, st.vectors, st.parents, st.results)

	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	ctx := context.Background()

	path := writeTestFile(t, settings.DataDir, "rules.md", "毕业论文查重率应低于15%。\n")
	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	handleWatchEvent(ctx, cmd, ing, watcher, fsnotify.Event{Name: path, Op: fsnotify.Write})
	assert.Equal(t, 1, fq.pointCount(cfg.CollectionName()))
	assert.Contains(t, buf.String(), "Re-ingested rules.md")

	// Writing again replaces the old vectors instead of duplicating them.
	handleWatchEvent(ctx, cmd, ing, watcher, fsnotify.Event{Name: path, Op: fsnotify.Write})
	assert.Equal(t, 1, fq.pointCount(cfg.CollectionName()))

	handleWatchEvent(ctx, cmd, ing, watcher, fsnotify.Event{Name: path, Op: fsnotify.Remove})
	assert.Equal(t, 0, fq.pointCount(cfg.CollectionName()))
	assert.Contains(t, buf.String(), "Removed rules.md")

	// Unsupported extensions are ignored.
	pdf := writeTestFile(t, settings.DataDir, "scan.pdf", "binary")
	handleWatchEvent(ctx, cmd, ing, watcher, fsnotify.Event{Name: pdf, Op: fsnotify.Write})
	assert.Equal(t, 0, fq.pointCount(cfg.CollectionName()))
}
