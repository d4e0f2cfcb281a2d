// Package config loads the three configuration surfaces: YAML experiment
// documents, YAML ablation-grid documents and the TOML app settings file.
// Absent fields fall back to compiled-in defaults, so a minimal document
// only names what it changes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

// experimentDoc mirrors the YAML experiment document. Every field is a
// pointer so absence is distinguishable from the zero value.
type experimentDoc struct {
	Experiment struct {
		ID          *string `yaml:"id"`
		Description *string `yaml:"description"`
	} `yaml:"experiment"`

	Model struct {
		LLMProvider       *string  `yaml:"llm_provider"`
		LLMModel          *string  `yaml:"llm_model"`
		LLMTemperature    *float64 `yaml:"llm_temperature"`
		EmbeddingProvider *string  `yaml:"embedding_provider"`
		EmbeddingModel    *string  `yaml:"embedding_model"`
		EmbeddingDim      *int     `yaml:"embedding_dim"`
		RerankerProvider  *string  `yaml:"reranker_provider"`
		RerankerModel     *string  `yaml:"reranker_model"`
	} `yaml:"model"`

	Storage struct {
		QdrantURL  *string `yaml:"qdrant_url"`
		DataDir    *string `yaml:"data_dir"`
		Collection *string `yaml:"collection"`
	} `yaml:"storage"`

	RAG struct {
		ChunkingStrategy  *string `yaml:"chunking_strategy"`
		ChunkSizeParent   *int    `yaml:"chunk_size_parent"`
		ChunkSizeChild    *int    `yaml:"chunk_size_child"`
		ChunkOverlap      *int    `yaml:"chunk_overlap"`
		SemanticThreshold *int    `yaml:"semantic_threshold"`
		SemanticBuffer    *int    `yaml:"semantic_buffer"`
	} `yaml:"rag"`

	Retrieval struct {
		EnableHybrid    *bool    `yaml:"enable_hybrid"`
		HybridAlpha     *float64 `yaml:"hybrid_alpha"`
		EnableAutoMerge *bool    `yaml:"enable_auto_merge"`
		MergeThreshold  *float64 `yaml:"merge_threshold"`
		EnableRerank    *bool    `yaml:"enable_rerank"`
		RetrievalTopK   *int     `yaml:"retrieval_top_k"`
		RerankTopK      *int     `yaml:"rerank_top_k"`
	} `yaml:"retrieval"`
}

// apply overlays the document onto params, leaving absent fields alone.
func (d *experimentDoc) apply(p *domain.ExperimentParams) {
	setString(&p.ExperimentID, d.Experiment.ID)
	setString(&p.Description, d.Experiment.Description)

	setString(&p.LLMProvider, d.Model.LLMProvider)
	setString(&p.LLMModel, d.Model.LLMModel)
	setFloat(&p.LLMTemperature, d.Model.LLMTemperature)
	setString(&p.EmbeddingProvider, d.Model.EmbeddingProvider)
	setString(&p.EmbeddingModel, d.Model.EmbeddingModel)
	setInt(&p.EmbeddingDim, d.Model.EmbeddingDim)
	setString(&p.RerankerProvider, d.Model.RerankerProvider)
	setString(&p.RerankerModel, d.Model.RerankerModel)

	setString(&p.QdrantURL, d.Storage.QdrantURL)
	setString(&p.DataDir, d.Storage.DataDir)
	setString(&p.CollectionOverride, d.Storage.Collection)

	setString(&p.ChunkingStrategy, d.RAG.ChunkingStrategy)
	setInt(&p.ChunkSizeParent, d.RAG.ChunkSizeParent)
	setInt(&p.ChunkSizeChild, d.RAG.ChunkSizeChild)
	setInt(&p.ChunkOverlap, d.RAG.ChunkOverlap)
	setInt(&p.SemanticThreshold, d.RAG.SemanticThreshold)
	setInt(&p.SemanticBuffer, d.RAG.SemanticBuffer)

	setBool(&p.EnableHybrid, d.Retrieval.EnableHybrid)
	setFloat(&p.HybridAlpha, d.Retrieval.HybridAlpha)
	setBool(&p.EnableAutoMerge, d.Retrieval.EnableAutoMerge)
	setFloat(&p.MergeThreshold, d.Retrieval.MergeThreshold)
	setBool(&p.EnableRerank, d.Retrieval.EnableRerank)
	setInt(&p.RetrievalTopK, d.Retrieval.RetrievalTopK)
	setInt(&p.RerankTopK, d.Retrieval.RerankTopK)
}

// LoadExperiment reads a YAML experiment document and builds a validated
// configuration on top of the given base parameters.
func LoadExperiment(path string, base domain.ExperimentParams) (*domain.ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment config: %w", err)
	}
	return ParseExperiment(data, base)
}

// ParseExperiment builds a configuration from YAML bytes.
func ParseExperiment(data []byte, base domain.ExperimentParams) (*domain.ExperimentConfig, error) {
	var doc experimentDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	doc.apply(&base)
	return domain.NewExperimentConfig(base)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
