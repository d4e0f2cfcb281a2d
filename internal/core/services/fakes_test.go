package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
	"github.com/custodia-labs/raglab-cli/internal/sparse"
)

// fakeEmbedder hashes tokens into a small vector so that texts sharing
// vocabulary land close together. fixed entries override the hash for
// exact texts; failOn makes Embed fail for texts containing it.
type fakeEmbedder struct {
	dim    int
	fixed  map[string][]float32
	failOn string

	mu     sync.Mutex
	calls  int
	closed bool
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim, fixed: make(map[string][]float32)}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, fmt.Errorf("provider rejected %q", f.failOn)
	}
	if v, ok := f.fixed[text]; ok {
		return v, nil
	}
	return hashEmbed(text, f.dim), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dim }

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

func (f *fakeEmbedder) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeEmbedder) embedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func hashEmbed(text string, dim int) []float32 {
	v := make([]float32, dim)
	for _, tok := range sparse.Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		v[h.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// fakeVectorStore keeps collections in memory and scores queries with
// cosine similarity, blending a sparse dot product in hybrid mode. It
// records the last query so tests can assert on the call shape.
type fakeVectorStore struct {
	mu           sync.Mutex
	collections  map[string][]domain.Node
	sparseSchema map[string]bool
	lastQuery    driven.VectorQuery
	queryCount   int
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		collections:  make(map[string][]domain.Node),
		sparseSchema: make(map[string]bool),
	}
}

func (f *fakeVectorStore) EnsureCollection(_ context.Context, collection string, _ int, sparse bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[collection]; !ok {
		f.collections[collection] = nil
	}
	f.sparseSchema[collection] = sparse
	return nil
}

func (f *fakeVectorStore) Upsert(_ context.Context, collection string, nodes []domain.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[collection] = append(f.collections[collection], nodes...)
	return nil
}

func (f *fakeVectorStore) Query(_ context.Context, collection string, q driven.VectorQuery) ([]domain.ScoredNode, error) {
	f.mu.Lock()
	f.lastQuery = q
	f.queryCount++
	nodes := f.collections[collection]
	f.mu.Unlock()

	scored := make([]domain.ScoredNode, 0, len(nodes))
	for _, n := range nodes {
		score := domain.CosineSimilarity(q.Dense, n.Embedding)
		if q.Mode == driven.QueryModeHybrid {
			score = q.Alpha*score + (1-q.Alpha)*sparseDot(q.SparseIndices, q.SparseValues, n.SparseIndices, n.SparseValues)
		}
		scored = append(scored, domain.ScoredNode{Node: n, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if q.Limit > 0 && len(scored) > q.Limit {
		scored = scored[:q.Limit]
	}
	return scored, nil
}

func sparseDot(qi []uint32, qv []float32, ni []uint32, nv []float32) float64 {
	weights := make(map[uint32]float32, len(ni))
	for k, idx := range ni {
		weights[idx] = nv[k]
	}
	var dot float64
	for k, idx := range qi {
		dot += float64(qv[k]) * float64(weights[idx])
	}
	// Squash so hybrid scores stay comparable to cosine.
	return dot / (1 + dot)
}

func (f *fakeVectorStore) DeleteByFile(_ context.Context, collection, fileName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.collections[collection][:0]
	for _, n := range f.collections[collection] {
		if n.FileName() != fileName {
			kept = append(kept, n)
		}
	}
	f.collections[collection] = kept
	return nil
}

func (f *fakeVectorStore) CollectionExists(_ context.Context, collection string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[collection]
	return ok, nil
}

func (f *fakeVectorStore) PointCount(_ context.Context, collection string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections[collection]), nil
}

func (f *fakeVectorStore) Close() error { return nil }

// fakeParentStore is an in-memory ParentStore.
type fakeParentStore struct {
	mu      sync.Mutex
	records map[string]map[string]domain.ParentRecord
}

func newFakeParentStore() *fakeParentStore {
	return &fakeParentStore{records: make(map[string]map[string]domain.ParentRecord)}
}

func (f *fakeParentStore) Put(_ context.Context, collection string, parents []domain.ParentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.records[collection]
	if m == nil {
		m = make(map[string]domain.ParentRecord)
		f.records[collection] = m
	}
	for _, p := range parents {
		m[p.ID] = p
	}
	return nil
}

func (f *fakeParentStore) GetMany(_ context.Context, collection string, ids []string) (map[string]domain.ParentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.ParentRecord, len(ids))
	for _, id := range ids {
		if rec, ok := f.records[collection][id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (f *fakeParentStore) DeleteByFile(_ context.Context, collection, fileName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, rec := range f.records[collection] {
		if rec.FileName == fileName {
			delete(f.records[collection], id)
		}
	}
	return nil
}

func (f *fakeParentStore) Close() error { return nil }

// fakeResultStore is an in-memory ResultStore.
type fakeResultStore struct {
	mu        sync.Mutex
	summaries []domain.Summary
	details   []domain.EvaluationRecord
	files     map[string][]string
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{files: make(map[string][]string)}
}

func (f *fakeResultStore) SaveSummaries(_ context.Context, _ string, summaries []domain.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summaries...)
	return nil
}

func (f *fakeResultStore) SaveDetails(_ context.Context, _ string, details []domain.EvaluationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details = append(f.details, details...)
	return nil
}

func (f *fakeResultStore) LoadSummaries(_ context.Context) ([]domain.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Summary(nil), f.summaries...), nil
}

func (f *fakeResultStore) RecordFile(_ context.Context, collection, fileName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.files[collection] {
		if existing == fileName {
			return nil
		}
	}
	f.files[collection] = append(f.files[collection], fileName)
	return nil
}

func (f *fakeResultStore) RemoveFile(_ context.Context, collection, fileName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.files[collection][:0]
	for _, existing := range f.files[collection] {
		if existing != fileName {
			kept = append(kept, existing)
		}
	}
	f.files[collection] = kept
	return nil
}

func (f *fakeResultStore) ListFiles(_ context.Context, collection string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.files[collection]...), nil
}

func (f *fakeResultStore) ListCollections(_ context.Context) ([]domain.CollectionStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	sort.Strings(names)
	stats := make([]domain.CollectionStat, 0, len(names))
	for _, name := range names {
		stats = append(stats, domain.CollectionStat{Name: name, FileCount: len(f.files[name])})
	}
	return stats, nil
}

func (f *fakeResultStore) Close() error { return nil }

// fakeReranker keeps the incoming order and assigns descending scores, so
// rerank-on behaves like a deterministic truncation in tests.
type fakeReranker struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, documents []string, topN int) ([]driven.RerankResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	n := len(documents)
	if topN < n {
		n = topN
	}
	out := make([]driven.RerankResult, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, driven.RerankResult{Index: i, Score: 1 - float64(i)*0.01})
	}
	return out, nil
}

func (f *fakeReranker) ModelName() string { return "fake-rerank" }

func mustConfig(p domain.ExperimentParams) *domain.ExperimentConfig {
	cfg, err := domain.NewExperimentConfig(p)
	if err != nil {
		panic(err)
	}
	return cfg
}
