package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid() ExperimentGrid {
	g := DefaultGrid()
	g.Strategies = map[string]StrategyParams{
		StrategyFixed: {
			ChunkSizesChild:  []int{256, 512},
			ChunkOverlaps:    []int{50, 100},
			ChunkSizesParent: []int{1024},
		},
		StrategySemantic: {
			BreakpointThresholds: []int{90, 95, 99},
			BufferSizes:          []int{1},
		},
	}
	g.EnableHybrid = []bool{true, false}
	g.EnableAutoMerge = []bool{true, false}
	g.EnableRerank = []bool{true}
	return g
}

func TestGrid_Cardinality(t *testing.T) {
	g := testGrid()

	// (2*2 + 3*1) * (2*2*1) = 28
	assert.Equal(t, 28, g.TotalCombinations())

	configs, err := g.GenerateConfigs()
	require.NoError(t, err)
	assert.Len(t, configs, g.TotalCombinations())
}

func TestGrid_EmptyStrategyContributesZero(t *testing.T) {
	g := testGrid()
	g.Strategies[StrategySemantic] = StrategyParams{
		BreakpointThresholds: nil,
		BufferSizes:          []int{1},
	}

	// Only the fixed group survives: 2*2 * (2*2*1) = 16.
	assert.Equal(t, 16, g.TotalCombinations())
	configs, err := g.GenerateConfigs()
	require.NoError(t, err)
	assert.Len(t, configs, 16)
	for _, cfg := range configs {
		assert.Equal(t, StrategyFixed, cfg.ChunkingStrategy)
	}
}

func TestGrid_StableIDsAndSharedFingerprints(t *testing.T) {
	g := testGrid()
	a, err := g.GenerateConfigs()
	require.NoError(t, err)
	b, err := g.GenerateConfigs()
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ExperimentID, b[i].ExperimentID)
		assert.Equal(t, a[i].Fingerprint(), b[i].Fingerprint())
	}

	// Retrieval toggles multiply configs but not fingerprints: the fixed
	// group has 4 ingestion-distinct combos, semantic has 3.
	fingerprints := map[string]bool{}
	for _, cfg := range a {
		fingerprints[cfg.Fingerprint()] = true
	}
	assert.Len(t, fingerprints, 7)
}

func TestDefaultGrid_SingleConfig(t *testing.T) {
	g := DefaultGrid()
	assert.Equal(t, 1, g.TotalCombinations())
	configs, err := g.GenerateConfigs()
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "ablation_0001", configs[0].ExperimentID)
}
