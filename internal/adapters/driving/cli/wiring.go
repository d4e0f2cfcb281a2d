package cli

import (
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/raglab-cli/internal/adapters/driven/embedding/dashscope"
	ollamaembed "github.com/custodia-labs/raglab-cli/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/raglab-cli/internal/adapters/driven/parentstore/bbolt"
	dashscoperank "github.com/custodia-labs/raglab-cli/internal/adapters/driven/reranker/dashscope"
	"github.com/custodia-labs/raglab-cli/internal/adapters/driven/resultstore/sqlite"
	"github.com/custodia-labs/raglab-cli/internal/adapters/driven/vectorstore/qdrant"
	"github.com/custodia-labs/raglab-cli/internal/config"
	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
	"github.com/custodia-labs/raglab-cli/internal/core/services"
)

// buildRegistry populates the closed set of pluggable components. The
// chunking strategies are compiled in; embedding and reranker providers
// close over the machine-local settings.
func buildRegistry(s config.Settings) *services.Registry {
	r := services.NewRegistry()
	services.RegisterDefaultChunkers(r)

	r.RegisterEmbedding("dashscope", func(cfg *domain.ExperimentConfig) (driven.EmbeddingService, error) {
		return dashscope.NewEmbeddingService(dashscope.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDim,
		})
	})
	r.RegisterEmbedding("ollama", func(cfg *domain.ExperimentConfig) (driven.EmbeddingService, error) {
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    s.OllamaURL,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDim,
		}), nil
	})
	r.RegisterReranker("dashscope", func(cfg *domain.ExperimentConfig) (driven.RerankerService, error) {
		return dashscoperank.NewRerankerService(dashscoperank.Config{
			APIKey: cfg.APIKey,
			Model:  cfg.RerankerModel,
		})
	})
	return r
}

// baseParams are the compiled-in experiment defaults overlaid with the
// machine-local settings. Experiment documents overlay these in turn.
func baseParams() domain.ExperimentParams {
	p := domain.DefaultParams()
	p.QdrantURL = settings.QdrantURL
	p.DataDir = settings.DataDir
	p.APIKey = settings.DashScopeAPIKey
	return p
}

// loadExperiment reads the experiment document at path, or returns the
// default configuration when path is empty.
func loadExperiment(path string) (*domain.ExperimentConfig, error) {
	if path == "" {
		return domain.NewExperimentConfig(baseParams())
	}
	return config.LoadExperiment(path, baseParams())
}

// stores bundles the three storage adapters a command needs.
type stores struct {
	vectors *qdrant.Store
	parents *bbolt.Store
	results *sqlite.Store
}

func openStores() (*stores, error) {
	parents, err := bbolt.Open(filepath.Join(settings.StateDir, "parents.db"))
	if err != nil {
		return nil, fmt.Errorf("open parent store: %w", err)
	}
	results, err := sqlite.Open(filepath.Join(settings.StateDir, "results.db"))
	if err != nil {
		parents.Close()
		return nil, fmt.Errorf("open result store: %w", err)
	}
	return &stores{
		vectors: qdrant.NewStore(qdrant.Config{URL: settings.QdrantURL}),
		parents: parents,
		results: results,
	}, nil
}

func (s *stores) close() {
	s.vectors.Close()
	s.parents.Close()
	s.results.Close()
}
