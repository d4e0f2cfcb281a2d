package domain

import (
	"fmt"
	"sort"
)

// StrategyParams is the parameter space of one chunking strategy inside an
// ablation grid. Size-based strategies vary chunk sizes and overlaps; the
// semantic strategy varies breakpoint thresholds and buffer sizes.
type StrategyParams struct {
	ChunkSizesChild  []int `yaml:"chunk_sizes_child"`
	ChunkOverlaps    []int `yaml:"chunk_overlaps"`
	ChunkSizesParent []int `yaml:"chunk_sizes_parent"`

	BreakpointThresholds []int `yaml:"breakpoint_thresholds"`
	BufferSizes          []int `yaml:"buffer_sizes"`
}

// combinations is the number of configs this strategy group contributes
// before multiplication by the shared dimensions. An empty parameter list
// zeroes out this group only, never the whole grid.
func (p StrategyParams) combinations(strategy string) int {
	if strategy == StrategySemantic {
		return len(p.BreakpointThresholds) * len(p.BufferSizes)
	}
	parents := len(p.ChunkSizesParent)
	if parents == 0 {
		// Parent size falls back to the grid default.
		parents = 1
	}
	return len(p.ChunkSizesChild) * len(p.ChunkOverlaps) * parents
}

// ExperimentGrid is the ablation matrix: per-strategy parameter spaces
// crossed with retrieval and model dimensions shared by every strategy.
type ExperimentGrid struct {
	// Strategies maps chunking strategy name to its parameter space.
	Strategies map[string]StrategyParams

	// Retrieval dimensions, shared across strategies.
	EnableHybrid    []bool
	EnableAutoMerge []bool
	EnableRerank    []bool

	// Model dimensions, shared across strategies.
	LLMModels       []string
	EmbeddingModels []string
	RerankerModels  []string

	// Fixed scalars that never enter the cartesian product.
	Defaults ExperimentParams
}

// DefaultGrid returns a grid with single-element dimensions around the
// compiled-in defaults, producing exactly one configuration.
func DefaultGrid() ExperimentGrid {
	d := DefaultParams()
	return ExperimentGrid{
		Strategies: map[string]StrategyParams{
			StrategyFixed: {
				ChunkSizesChild:  []int{d.ChunkSizeChild},
				ChunkOverlaps:    []int{d.ChunkOverlap},
				ChunkSizesParent: []int{d.ChunkSizeParent},
			},
		},
		EnableHybrid:    []bool{d.EnableHybrid},
		EnableAutoMerge: []bool{d.EnableAutoMerge},
		EnableRerank:    []bool{d.EnableRerank},
		LLMModels:       []string{d.LLMModel},
		EmbeddingModels: []string{d.EmbeddingModel},
		RerankerModels:  []string{d.RerankerModel},
		Defaults:        d,
	}
}

// TotalCombinations is the grid cardinality:
// sum over strategy groups of that group's combinations, multiplied by the
// shared retrieval and model dimensions.
func (g ExperimentGrid) TotalCombinations() int {
	strategyTotal := 0
	for name, params := range g.Strategies {
		strategyTotal += params.combinations(name)
	}
	shared := len(g.EnableHybrid) * len(g.EnableAutoMerge) * len(g.EnableRerank) *
		len(g.LLMModels) * len(g.EmbeddingModels) * len(g.RerankerModels)
	return strategyTotal * shared
}

type sharedCombo struct {
	hybrid    bool
	autoMerge bool
	rerank    bool
	llm       string
	embedding string
	reranker  string
}

func (g ExperimentGrid) sharedCombos() []sharedCombo {
	combos := make([]sharedCombo, 0,
		len(g.EnableHybrid)*len(g.EnableAutoMerge)*len(g.EnableRerank)*
			len(g.LLMModels)*len(g.EmbeddingModels)*len(g.RerankerModels))
	for _, hybrid := range g.EnableHybrid {
		for _, merge := range g.EnableAutoMerge {
			for _, rerank := range g.EnableRerank {
				for _, llm := range g.LLMModels {
					for _, emb := range g.EmbeddingModels {
						for _, rr := range g.RerankerModels {
							combos = append(combos, sharedCombo{hybrid, merge, rerank, llm, emb, rr})
						}
					}
				}
			}
		}
	}
	return combos
}

// GenerateConfigs expands the grid into concrete experiment configurations.
// Strategies are visited in sorted name order so experiment IDs are stable
// across runs. Configs sharing ingestion parameters share a fingerprint and
// therefore a collection; only the retrieval toggles differ between them.
func (g ExperimentGrid) GenerateConfigs() ([]*ExperimentConfig, error) {
	shared := g.sharedCombos()

	names := make([]string, 0, len(g.Strategies))
	for name := range g.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)

	var configs []*ExperimentConfig
	idx := 0

	emit := func(p ExperimentParams, desc string) error {
		idx++
		p.ExperimentID = fmt.Sprintf("ablation_%04d", idx)
		p.Description = desc
		cfg, err := NewExperimentConfig(p)
		if err != nil {
			return fmt.Errorf("grid combination %d: %w", idx, err)
		}
		configs = append(configs, cfg)
		return nil
	}

	yn := func(b bool) string {
		if b {
			return "Y"
		}
		return "N"
	}

	for _, name := range names {
		params := g.Strategies[name]

		if name == StrategySemantic {
			for _, threshold := range params.BreakpointThresholds {
				for _, buffer := range params.BufferSizes {
					for _, sc := range shared {
						p := g.Defaults
						p.ChunkingStrategy = name
						p.SemanticThreshold = threshold
						p.SemanticBuffer = buffer
						applyShared(&p, sc)
						desc := fmt.Sprintf("semantic_t%d_b%d_h%s_m%s_r%s",
							threshold, buffer, yn(sc.hybrid), yn(sc.autoMerge), yn(sc.rerank))
						if err := emit(p, desc); err != nil {
							return nil, err
						}
					}
				}
			}
			continue
		}

		for _, child := range params.ChunkSizesChild {
			for _, overlap := range params.ChunkOverlaps {
				parents := params.ChunkSizesParent
				if len(parents) == 0 {
					parents = []int{g.Defaults.ChunkSizeParent}
				}
				for _, parent := range parents {
					for _, sc := range shared {
						p := g.Defaults
						p.ChunkingStrategy = name
						p.ChunkSizeChild = child
						p.ChunkOverlap = overlap
						p.ChunkSizeParent = parent
						applyShared(&p, sc)
						desc := fmt.Sprintf("%s_c%d_o%d_h%s_m%s_r%s",
							name, child, overlap, yn(sc.hybrid), yn(sc.autoMerge), yn(sc.rerank))
						if err := emit(p, desc); err != nil {
							return nil, err
						}
					}
				}
			}
		}
	}

	return configs, nil
}

func applyShared(p *ExperimentParams, sc sharedCombo) {
	p.EnableHybrid = sc.hybrid
	p.EnableAutoMerge = sc.autoMerge
	p.EnableRerank = sc.rerank
	p.LLMModel = sc.llm
	p.EmbeddingModel = sc.embedding
	p.RerankerModel = sc.reranker
}
