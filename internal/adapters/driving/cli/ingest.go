package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/services"
	"github.com/custodia-labs/raglab-cli/internal/logger"
)

var (
	ingestExperiment string
	ingestDataDir    string
	ingestWatch      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the corpus into the experiment's collection",
	Long: `Loads every .md and .txt file under the data directory, chunks it
according to the experiment configuration, embeds the searchable nodes and
writes them to the experiment's qdrant collection.

With --watch the command keeps running and re-ingests files as they change,
removing vectors for deleted files.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestExperiment, "experiment", "e", "", "experiment YAML file (default: compiled-in defaults)")
	ingestCmd.Flags().StringVar(&ingestDataDir, "data-dir", "", "override the corpus directory")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the corpus for changes")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadExperiment(ingestExperiment)
	if err != nil {
		return err
	}
	dataDir := cfg.DataDir
	if ingestDataDir != "" {
		dataDir = ingestDataDir
	}

	st, err := openStores()
	if err != nil {
		return err
	}
	defer st.close()

	embedder, err := registry.Embedding(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	chunker, err := registry.Chunker(cfg, embedder)
	if err != nil {
		return err
	}

	ing := services.NewIngestion(cfg, chunker, embedder, st.vectors, st.parents, st.results)
	ctx := cmd.Context()

	count, err := ing.IngestDirectory(ctx, dataDir)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", dataDir, err)
	}
	cmd.Printf("Ingested %d nodes into %s (experiment %s)\n", count, cfg.CollectionName(), cfg.ExperimentID)

	if !ingestWatch {
		return nil
	}
	cmd.Printf("Watching %s for changes, ctrl-c to stop\n", dataDir)
	return watchDirectory(ctx, cmd, ing, dataDir)
}

// watchDirectory re-ingests files as they change and drops vectors for
// removed files. It returns when ctx is cancelled.
func watchDirectory(ctx context.Context, cmd *cobra.Command, ing *services.Ingestion, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchTree(watcher, dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			handleWatchEvent(ctx, cmd, ing, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: %v", err)
		}
	}
}

func addWatchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func handleWatchEvent(ctx context.Context, cmd *cobra.Command, ing *services.Ingestion, watcher *fsnotify.Watcher, event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				logger.Error("watch %s: %v", event.Name, err)
			}
			return
		}
		reingestFile(ctx, cmd, ing, event.Name)
	case event.Op.Has(fsnotify.Write):
		reingestFile(ctx, cmd, ing, event.Name)
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if !services.SupportedFile(event.Name) {
			return
		}
		fileName := filepath.Base(event.Name)
		if err := ing.DeleteFile(ctx, fileName); err != nil {
			logger.Error("delete %s: %v", fileName, err)
			return
		}
		cmd.Printf("Removed %s\n", fileName)
	}
}

func reingestFile(ctx context.Context, cmd *cobra.Command, ing *services.Ingestion, path string) {
	if !services.SupportedFile(path) {
		return
	}
	fileName := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read %s: %v", path, err)
		return
	}

	// Stale vectors for the previous version of the file go first.
	if err := ing.DeleteFile(ctx, fileName); err != nil {
		logger.Error("delete %s: %v", fileName, err)
		return
	}
	doc := domain.Document{
		ID:       uuid.NewString(),
		FileName: fileName,
		Text:     string(data),
	}
	count, err := ing.IngestDocuments(ctx, []domain.Document{doc})
	if err != nil {
		logger.Error("ingest %s: %v", fileName, err)
		return
	}
	cmd.Printf("Re-ingested %s (%d nodes)\n", fileName, count)
}
