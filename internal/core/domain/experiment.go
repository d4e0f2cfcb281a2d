package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Chunking strategy names. The set is closed; the registry refuses
// anything else at construction time.
const (
	StrategyFixed     = "fixed"
	StrategyRecursive = "recursive"
	StrategySentence  = "sentence"
	StrategySemantic  = "semantic"
)

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 12

// ExperimentParams holds every parameter that affects either ingestion or
// retrieval for one experiment. It is the mutable input to
// NewExperimentConfig; the config itself is treated as immutable once built.
type ExperimentParams struct {
	// Experiment metadata.
	ExperimentID string
	Description  string

	// Model providers.
	LLMProvider    string
	LLMModel       string
	LLMTemperature float64

	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingDim      int

	RerankerProvider string
	RerankerModel    string

	// Storage.
	QdrantURL          string
	DataDir            string
	CollectionOverride string

	// Chunking parameters. These feed the ingestion fingerprint.
	ChunkingStrategy  string
	ChunkSizeParent   int
	ChunkSizeChild    int
	ChunkOverlap      int
	SemanticThreshold int
	SemanticBuffer    int

	// Retrieval parameters. These never feed the fingerprint, so two
	// configs differing only here share one ingested collection.
	EnableHybrid    bool
	HybridAlpha     float64
	EnableAutoMerge bool
	MergeThreshold  float64
	EnableRerank    bool
	RetrievalTopK   int
	RerankTopK      int

	// APIKey is the provider secret. Excluded from display output.
	APIKey string
}

// DefaultParams returns the compiled-in defaults. Factory methods start
// from these and overlay whatever the configuration document specifies.
func DefaultParams() ExperimentParams {
	return ExperimentParams{
		ExperimentID:      "default",
		Description:       "Default Configuration",
		LLMProvider:       "dashscope",
		LLMModel:          "qwen-plus",
		LLMTemperature:    0.1,
		EmbeddingProvider: "dashscope",
		EmbeddingModel:    "text-embedding-v4",
		EmbeddingDim:      1536,
		RerankerProvider:  "dashscope",
		RerankerModel:     "gte-rerank",
		QdrantURL:         "http://localhost:6333",
		DataDir:           "data",
		ChunkingStrategy:  StrategyFixed,
		ChunkSizeParent:   1024,
		ChunkSizeChild:    256,
		ChunkOverlap:      50,
		SemanticThreshold: 95,
		SemanticBuffer:    1,
		EnableHybrid:      true,
		HybridAlpha:       0.5,
		EnableAutoMerge:   true,
		MergeThreshold:    0.5,
		EnableRerank:      true,
		RetrievalTopK:     50,
		RerankTopK:        5,
	}
}

// ExperimentConfig is the immutable record of one experiment. The
// ingestion fingerprint and collection name are derived once at
// construction, since the source fields never change afterwards.
type ExperimentConfig struct {
	ExperimentParams

	fingerprint    string
	collectionName string
}

// NewExperimentConfig validates the parameters and derives the fingerprint
// and collection name. Validation failures wrap ErrInvalidConfig and carry
// the offending value; they surface before any I/O happens.
func NewExperimentConfig(p ExperimentParams) (*ExperimentConfig, error) {
	switch p.ChunkingStrategy {
	case StrategyFixed, StrategyRecursive, StrategySentence, StrategySemantic:
	default:
		return nil, fmt.Errorf("%w: chunking strategy %q (valid: %s)",
			ErrInvalidConfig, p.ChunkingStrategy,
			strings.Join([]string{StrategyFixed, StrategyRecursive, StrategySentence, StrategySemantic}, ", "))
	}
	if p.ChunkSizeChild <= 0 {
		return nil, fmt.Errorf("%w: chunk_size_child must be positive, got %d", ErrInvalidConfig, p.ChunkSizeChild)
	}
	if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSizeChild {
		return nil, fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size_child)", ErrInvalidConfig, p.ChunkOverlap)
	}
	if p.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("%w: embedding_dim must be positive, got %d", ErrInvalidConfig, p.EmbeddingDim)
	}
	if p.HybridAlpha < 0 || p.HybridAlpha > 1 {
		return nil, fmt.Errorf("%w: hybrid_alpha %v must be in [0,1]", ErrInvalidConfig, p.HybridAlpha)
	}
	if p.MergeThreshold <= 0 || p.MergeThreshold > 1 {
		p.MergeThreshold = 0.5
	}
	if p.RetrievalTopK <= 0 {
		return nil, fmt.Errorf("%w: retrieval_top_k must be positive, got %d", ErrInvalidConfig, p.RetrievalTopK)
	}
	if p.RerankTopK <= 0 {
		return nil, fmt.Errorf("%w: rerank_top_k must be positive, got %d", ErrInvalidConfig, p.RerankTopK)
	}

	cfg := &ExperimentConfig{ExperimentParams: p}
	cfg.fingerprint = computeFingerprint(p)
	if p.CollectionOverride != "" {
		cfg.collectionName = p.CollectionOverride
	} else {
		cfg.collectionName = "exp_" + cfg.fingerprint
	}
	return cfg, nil
}

// Fingerprint is the ingestion fingerprint: a stable hash over only the
// parameters that decide what ends up in the vector store. Experiments
// with equal fingerprints share one collection.
func (c *ExperimentConfig) Fingerprint() string { return c.fingerprint }

// CollectionName is "exp_" + fingerprint unless an explicit override was
// supplied in the storage section.
func (c *ExperimentConfig) CollectionName() string { return c.collectionName }

// computeFingerprint joins the ingestion-relevant fields with "|" and keeps
// the first 12 hex characters of the MD5 digest.
//
// The semantic strategy's output is decided by threshold + buffer + the
// embedding identity, not by chunk sizes, so it hashes a different field
// set. This keeps a grid of semantic x several chunk sizes from producing
// duplicate collections.
func computeFingerprint(p ExperimentParams) string {
	var parts []string
	if p.ChunkingStrategy == StrategySemantic {
		parts = []string{
			p.ChunkingStrategy,
			strconv.Itoa(p.SemanticThreshold),
			strconv.Itoa(p.SemanticBuffer),
			p.EmbeddingProvider,
			p.EmbeddingModel,
			strconv.Itoa(p.EmbeddingDim),
		}
	} else {
		parts = []string{
			p.ChunkingStrategy,
			strconv.Itoa(p.ChunkSizeParent),
			strconv.Itoa(p.ChunkSizeChild),
			strconv.Itoa(p.ChunkOverlap),
			p.EmbeddingProvider,
			p.EmbeddingModel,
			strconv.Itoa(p.EmbeddingDim),
		}
	}
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// DisplayMap returns the parameters as a map without the secret fields,
// for logging and JSON output.
func (c *ExperimentConfig) DisplayMap() map[string]any {
	return map[string]any{
		"experiment_id":      c.ExperimentID,
		"description":        c.Description,
		"llm_provider":       c.LLMProvider,
		"llm_model":          c.LLMModel,
		"embedding_provider": c.EmbeddingProvider,
		"embedding_model":    c.EmbeddingModel,
		"embedding_dim":      c.EmbeddingDim,
		"reranker_provider":  c.RerankerProvider,
		"reranker_model":     c.RerankerModel,
		"chunking_strategy":  c.ChunkingStrategy,
		"chunk_size_parent":  c.ChunkSizeParent,
		"chunk_size_child":   c.ChunkSizeChild,
		"chunk_overlap":      c.ChunkOverlap,
		"semantic_threshold": c.SemanticThreshold,
		"semantic_buffer":    c.SemanticBuffer,
		"enable_hybrid":      c.EnableHybrid,
		"hybrid_alpha":       c.HybridAlpha,
		"enable_auto_merge":  c.EnableAutoMerge,
		"enable_rerank":      c.EnableRerank,
		"retrieval_top_k":    c.RetrievalTopK,
		"rerank_top_k":       c.RerankTopK,
		"fingerprint":        c.fingerprint,
		"collection_name":    c.collectionName,
	}
}

// String is a compact one-line summary used in log output.
func (c *ExperimentConfig) String() string {
	return fmt.Sprintf(
		"ExperimentConfig(id=%s, chunker=%s, child=%d, overlap=%d, hybrid=%t, auto_merge=%t, rerank=%t, collection=%s)",
		c.ExperimentID, c.ChunkingStrategy, c.ChunkSizeChild, c.ChunkOverlap,
		c.EnableHybrid, c.EnableAutoMerge, c.EnableRerank, c.collectionName,
	)
}
