package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raglab-cli/internal/config"
	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
	"github.com/custodia-labs/raglab-cli/internal/core/services"
)

// setupTestRuntime points the package state at temp dirs, a fake qdrant
// server and stub providers, restoring everything on cleanup.
func setupTestRuntime(t *testing.T) *fakeQdrant {
	t.Helper()

	fq := newFakeQdrant()
	srv := httptest.NewServer(fq)
	t.Cleanup(srv.Close)

	oldSettings, oldRegistry, oldReady := settings, registry, runtimeReady
	t.Cleanup(func() {
		settings, registry, runtimeReady = oldSettings, oldRegistry, oldReady
	})

	settings = config.Settings{
		QdrantURL:   srv.URL,
		OllamaURL:   "http://localhost:11434",
		DataDir:     t.TempDir(),
		OutputDir:   filepath.Join(t.TempDir(), "results"),
		StateDir:    t.TempDir(),
		EvalWorkers: 1,
	}

	registry = services.NewRegistry()
	services.RegisterDefaultChunkers(registry)
	registry.RegisterEmbedding("stub", func(cfg *domain.ExperimentConfig) (driven.EmbeddingService, error) {
		return &stubEmbedder{dim: cfg.EmbeddingDim}, nil
	})
	registry.RegisterReranker("stub", func(_ *domain.ExperimentConfig) (driven.RerankerService, error) {
		return stubReranker{}, nil
	})
	runtimeReady = true

	resetFlags()
	t.Cleanup(resetFlags)
	return fq
}

func resetFlags() {
	ingestExperiment, ingestDataDir, ingestWatch = "", "", false
	queryExperiment, queryJSON, queryShowContext = "", false, false
	ablateGrid, ablateDataset, ablateLimit, ablateSkipIngest, ablateOutDir = "", "", 0, false, ""
	resultsLimit = 20
}

// executeCommand runs the root command with args and captures its output.
func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// stubEmbedder returns a constant unit vector. Retrieval order in tests
// comes from the fake qdrant server, not from the vectors.
type stubEmbedder struct{ dim int }

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	v := make([]float32, s.dim)
	v[0] = 1
	return v, nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, s.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int   { return s.dim }
func (s *stubEmbedder) ModelName() string { return "stub-embed" }
func (s *stubEmbedder) Close() error      { return nil }

// stubReranker keeps the incoming order with descending scores.
type stubReranker struct{}

func (stubReranker) Rerank(_ context.Context, _ string, documents []string, topN int) ([]driven.RerankResult, error) {
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

func (stubReranker) ModelName() string { return "stub-rerank" }

// fakeQdrant is a stateful in-memory stand-in for the qdrant REST API:
// collections, upserted points, searches returning every point in upsert
// order with descending scores.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]bool
	points      map[string][]fakePoint
}

type fakePoint struct {
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload"`
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{
		collections: make(map[string]bool),
		points:      make(map[string][]fakePoint),
	}
}

func (f *fakeQdrant) pointCount(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points[collection])
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/collections/"), "/")
	collection := parts[0]

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		if !f.collections[collection] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "green"}})

	case len(parts) == 1 && r.Method == http.MethodPut:
		f.collections[collection] = true
		writeJSON(w, map[string]any{"result": true})

	case len(parts) == 2 && parts[1] == "points" && r.Method == http.MethodPut:
		var body struct {
			Points []fakePoint `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points[collection] = append(f.points[collection], body.Points...)
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})

	case len(parts) == 3 && parts[2] == "search":
		hits := make([]map[string]any, 0, len(f.points[collection]))
		for i, p := range f.points[collection] {
			hits = append(hits, map[string]any{
				"id":      p.ID,
				"score":   1 - 0.01*float64(i),
				"payload": p.Payload,
			})
		}
		writeJSON(w, map[string]any{"result": hits})

	case len(parts) == 3 && parts[2] == "count":
		writeJSON(w, map[string]any{"result": map[string]any{"count": len(f.points[collection])}})

	case len(parts) == 3 && parts[2] == "delete":
		var body struct {
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value string `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Filter.Must) == 1 {
			fileName := body.Filter.Must[0].Match.Value
			kept := f.points[collection][:0]
			for _, p := range f.points[collection] {
				if p.Payload[domain.MetaFileName] != fileName {
					kept = append(kept, p)
				}
			}
			f.points[collection] = kept
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
