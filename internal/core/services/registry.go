package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/raglab-cli/internal/chunkers"
	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
)

// ChunkerFactory builds a chunker for one experiment configuration. The
// embedder is non-nil only for strategies that need one (semantic).
type ChunkerFactory func(cfg *domain.ExperimentConfig, embedder driven.EmbeddingService) (chunkers.Chunker, error)

// EmbeddingFactory builds an embedding service for one configuration.
type EmbeddingFactory func(cfg *domain.ExperimentConfig) (driven.EmbeddingService, error)

// RerankerFactory builds a reranker service for one configuration.
type RerankerFactory func(cfg *domain.ExperimentConfig) (driven.RerankerService, error)

// Registry is the name-to-factory lookup for pluggable strategies. It is
// an explicit, constructed instance injected into whatever needs strategy
// lookup; registration happens once at process start and the instance
// lives for the process, not behind package-level state.
type Registry struct {
	mu         sync.RWMutex
	chunkers   map[string]ChunkerFactory
	embeddings map[string]EmbeddingFactory
	rerankers  map[string]RerankerFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		chunkers:   make(map[string]ChunkerFactory),
		embeddings: make(map[string]EmbeddingFactory),
		rerankers:  make(map[string]RerankerFactory),
	}
}

// RegisterChunker adds a chunking strategy under name.
func (r *Registry) RegisterChunker(name string, f ChunkerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunkers[name] = f
}

// RegisterEmbedding adds an embedding provider under name.
func (r *Registry) RegisterEmbedding(name string, f EmbeddingFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = f
}

// RegisterReranker adds a reranker provider under name.
func (r *Registry) RegisterReranker(name string, f RerankerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rerankers[name] = f
}

// Chunker constructs the chunker named by the configuration's chunking
// strategy. Unknown names fail with the requested key and the set of
// registered keys, before any I/O.
func (r *Registry) Chunker(cfg *domain.ExperimentConfig, embedder driven.EmbeddingService) (chunkers.Chunker, error) {
	r.mu.RLock()
	f, ok := r.chunkers[cfg.ChunkingStrategy]
	r.mu.RUnlock()
	if !ok {
		return nil, r.unknown("chunker", cfg.ChunkingStrategy, r.chunkerNames())
	}
	return f(cfg, embedder)
}

// Embedding constructs the embedding service named by the configuration.
func (r *Registry) Embedding(cfg *domain.ExperimentConfig) (driven.EmbeddingService, error) {
	r.mu.RLock()
	f, ok := r.embeddings[cfg.EmbeddingProvider]
	r.mu.RUnlock()
	if !ok {
		return nil, r.unknown("embedding provider", cfg.EmbeddingProvider, r.embeddingNames())
	}
	return f(cfg)
}

// Reranker constructs the reranker service named by the configuration.
func (r *Registry) Reranker(cfg *domain.ExperimentConfig) (driven.RerankerService, error) {
	r.mu.RLock()
	f, ok := r.rerankers[cfg.RerankerProvider]
	r.mu.RUnlock()
	if !ok {
		return nil, r.unknown("reranker provider", cfg.RerankerProvider, r.rerankerNames())
	}
	return f(cfg)
}

func (r *Registry) unknown(kind, name string, registered []string) error {
	return fmt.Errorf("%w: %s %q (registered: %s)",
		domain.ErrUnknownComponent, kind, name, strings.Join(registered, ", "))
}

func (r *Registry) chunkerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.chunkers)
}

func (r *Registry) embeddingNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.embeddings)
}

func (r *Registry) rerankerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.rerankers)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RegisterDefaultChunkers populates the closed set of chunking strategies.
// Embedding and reranker providers are registered by the composition root,
// which knows the concrete adapters.
func RegisterDefaultChunkers(r *Registry) {
	r.RegisterChunker(domain.StrategyFixed, func(cfg *domain.ExperimentConfig, _ driven.EmbeddingService) (chunkers.Chunker, error) {
		return chunkers.NewFixed(cfg.ChunkSizeChild, cfg.ChunkOverlap), nil
	})
	r.RegisterChunker(domain.StrategyRecursive, func(cfg *domain.ExperimentConfig, _ driven.EmbeddingService) (chunkers.Chunker, error) {
		return chunkers.NewRecursive(cfg.ChunkSizeChild, cfg.ChunkOverlap), nil
	})
	r.RegisterChunker(domain.StrategySentence, func(_ *domain.ExperimentConfig, _ driven.EmbeddingService) (chunkers.Chunker, error) {
		return chunkers.NewSentence(), nil
	})
	r.RegisterChunker(domain.StrategySemantic, func(cfg *domain.ExperimentConfig, embedder driven.EmbeddingService) (chunkers.Chunker, error) {
		return chunkers.NewSemantic(embedder, cfg.SemanticThreshold, cfg.SemanticBuffer)
	})
}
