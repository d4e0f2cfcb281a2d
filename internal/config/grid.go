package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

// gridDoc mirrors the YAML ablation-grid document.
type gridDoc struct {
	Strategies map[string]domain.StrategyParams `yaml:"strategies"`

	Retrieval struct {
		EnableHybrid    []bool `yaml:"enable_hybrid"`
		EnableAutoMerge []bool `yaml:"enable_auto_merge"`
		EnableRerank    []bool `yaml:"enable_rerank"`
	} `yaml:"retrieval"`

	Models struct {
		LLMModels       []string `yaml:"llm_models"`
		EmbeddingModels []string `yaml:"embedding_models"`
		RerankerModels  []string `yaml:"reranker_models"`
	} `yaml:"models"`

	// Defaults uses the experiment document shape; its values become the
	// fixed scalars of every generated configuration.
	Defaults experimentDoc `yaml:"defaults"`
}

// LoadGrid reads a YAML grid document. Absent dimensions collapse to the
// single default value so they multiply by one instead of zeroing the grid.
func LoadGrid(path string, base domain.ExperimentParams) (domain.ExperimentGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ExperimentGrid{}, fmt.Errorf("read grid config: %w", err)
	}
	return ParseGrid(data, base)
}

// ParseGrid builds a grid from YAML bytes.
func ParseGrid(data []byte, base domain.ExperimentParams) (domain.ExperimentGrid, error) {
	var doc gridDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.ExperimentGrid{}, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if len(doc.Strategies) == 0 {
		return domain.ExperimentGrid{}, fmt.Errorf("%w: grid document names no strategies", domain.ErrInvalidConfig)
	}
	for name := range doc.Strategies {
		switch name {
		case domain.StrategyFixed, domain.StrategyRecursive, domain.StrategySentence, domain.StrategySemantic:
		default:
			return domain.ExperimentGrid{}, fmt.Errorf("%w: unknown strategy %q in grid", domain.ErrInvalidConfig, name)
		}
	}

	doc.Defaults.apply(&base)

	grid := domain.ExperimentGrid{
		Strategies:      doc.Strategies,
		EnableHybrid:    doc.Retrieval.EnableHybrid,
		EnableAutoMerge: doc.Retrieval.EnableAutoMerge,
		EnableRerank:    doc.Retrieval.EnableRerank,
		LLMModels:       doc.Models.LLMModels,
		EmbeddingModels: doc.Models.EmbeddingModels,
		RerankerModels:  doc.Models.RerankerModels,
		Defaults:        base,
	}
	if len(grid.EnableHybrid) == 0 {
		grid.EnableHybrid = []bool{base.EnableHybrid}
	}
	if len(grid.EnableAutoMerge) == 0 {
		grid.EnableAutoMerge = []bool{base.EnableAutoMerge}
	}
	if len(grid.EnableRerank) == 0 {
		grid.EnableRerank = []bool{base.EnableRerank}
	}
	if len(grid.LLMModels) == 0 {
		grid.LLMModels = []string{base.LLMModel}
	}
	if len(grid.EmbeddingModels) == 0 {
		grid.EmbeddingModels = []string{base.EmbeddingModel}
	}
	if len(grid.RerankerModels) == 0 {
		grid.RerankerModels = []string{base.RerankerModel}
	}
	return grid, nil
}
