// Package qdrant is a REST vector store adapter. Collections carry a named
// dense vector and an optional named sparse vector; hybrid queries run both
// searches and blend the score lists client-side.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
	"github.com/custodia-labs/raglab-cli/internal/logger"
)

// Named vector fields inside every collection.
const (
	denseVectorName  = "text-dense"
	sparseVectorName = "text-sparse"
)

// upsertBatchSize caps points per upsert request.
const upsertBatchSize = 100

var _ driven.VectorStore = (*Store)(nil)

// Config holds the connection parameters.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Store is a REST client to one qdrant endpoint. The underlying
// *http.Client is shared between stores pointing at the same endpoint.
type Store struct {
	url    string
	apiKey string
	client *http.Client
}

// NewStore returns a store for the endpoint in cfg.
func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Store{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: sharedClient(cfg.URL, timeout),
	}
}

// EnsureCollection creates the collection when missing. An existing
// collection is left untouched, whatever its schema.
func (s *Store) EnsureCollection(ctx context.Context, collection string, dim int, sparse bool) error {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     dim,
				"distance": "Cosine",
			},
		},
	}
	if sparse {
		body["sparse_vectors"] = map[string]any{
			sparseVectorName: map[string]any{},
		}
	}
	logger.Debug("creating collection %s (dim=%d sparse=%v)", collection, dim, sparse)
	return s.do(ctx, http.MethodPut, "/collections/"+collection, body, nil)
}

// Upsert writes nodes as points, batched.
func (s *Store) Upsert(ctx context.Context, collection string, nodes []domain.Node) error {
	for start := 0; start < len(nodes); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		points := make([]map[string]any, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, pointFromNode(&nodes[i]))
		}
		body := map[string]any{"points": points}
		if err := s.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil); err != nil {
			return fmt.Errorf("upsert batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func pointFromNode(n *domain.Node) map[string]any {
	vector := map[string]any{
		denseVectorName: n.Embedding,
	}
	if len(n.SparseIndices) > 0 {
		vector[sparseVectorName] = map[string]any{
			"indices": n.SparseIndices,
			"values":  n.SparseValues,
		}
	}
	payload := map[string]any{
		"text": n.Text,
	}
	for k, v := range n.Metadata {
		payload[k] = v
	}
	if n.ParentID != "" {
		payload[domain.MetaParentID] = n.ParentID
	}
	return map[string]any{
		"id":      n.ID,
		"vector":  vector,
		"payload": payload,
	}
}

type searchHit struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type searchResponse struct {
	Result []searchHit `json:"result"`
}

// Query runs a dense search, or in hybrid mode a dense plus a sparse
// search whose normalized scores are blended with the query's alpha.
func (s *Store) Query(ctx context.Context, collection string, q driven.VectorQuery) ([]domain.ScoredNode, error) {
	dense, err := s.search(ctx, collection, map[string]any{
		"vector": map[string]any{
			"name":   denseVectorName,
			"vector": q.Dense,
		},
		"limit":        q.Limit,
		"with_payload": true,
	})
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}

	if q.Mode != driven.QueryModeHybrid {
		return hitsToNodes(dense), nil
	}

	sparse, err := s.search(ctx, collection, map[string]any{
		"vector": map[string]any{
			"name": sparseVectorName,
			"vector": map[string]any{
				"indices": q.SparseIndices,
				"values":  q.SparseValues,
			},
		},
		"limit":        q.Limit,
		"with_payload": true,
	})
	if err != nil {
		return nil, fmt.Errorf("sparse search: %w", err)
	}

	blended := blendHits(dense, sparse, q.Alpha)
	if len(blended) > q.Limit {
		blended = blended[:q.Limit]
	}
	return blended, nil
}

func (s *Store) search(ctx context.Context, collection string, body map[string]any) ([]searchHit, error) {
	var resp searchResponse
	if err := s.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// blendHits merges the two score lists: each list is min-max normalized to
// [0,1], then combined as alpha*dense + (1-alpha)*sparse. Points present
// in only one list contribute zero on the other side.
func blendHits(dense, sparse []searchHit, alpha float64) []domain.ScoredNode {
	denseNorm := normalizeScores(dense)
	sparseNorm := normalizeScores(sparse)

	var order []string
	hits := make(map[string]searchHit, len(dense)+len(sparse))
	scores := make(map[string]float64, len(dense)+len(sparse))
	for _, h := range dense {
		if _, ok := hits[h.ID]; !ok {
			order = append(order, h.ID)
			hits[h.ID] = h
		}
		scores[h.ID] += alpha * denseNorm[h.ID]
	}
	for _, h := range sparse {
		if _, ok := hits[h.ID]; !ok {
			order = append(order, h.ID)
			hits[h.ID] = h
		}
		scores[h.ID] += (1 - alpha) * sparseNorm[h.ID]
	}

	out := make([]domain.ScoredNode, 0, len(order))
	for _, id := range order {
		h := hits[id]
		h.Score = scores[id]
		out = append(out, nodeFromHit(h))
	}
	sortByScore(out)
	return out
}

// normalizeScores min-max normalizes one result list by point ID. A list
// with a single distinct score maps everything to 1.
func normalizeScores(hits []searchHit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}
	for _, h := range hits {
		if hi == lo {
			out[h.ID] = 1
		} else {
			out[h.ID] = (h.Score - lo) / (hi - lo)
		}
	}
	return out
}

func sortByScore(nodes []domain.ScoredNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Score > nodes[j].Score
	})
}

func hitsToNodes(hits []searchHit) []domain.ScoredNode {
	out := make([]domain.ScoredNode, 0, len(hits))
	for _, h := range hits {
		out = append(out, nodeFromHit(h))
	}
	return out
}

func nodeFromHit(h searchHit) domain.ScoredNode {
	n := domain.Node{
		ID:       h.ID,
		Metadata: make(map[string]any, len(h.Payload)),
	}
	for k, v := range h.Payload {
		switch k {
		case "text":
			n.Text, _ = v.(string)
		case domain.MetaParentID:
			n.ParentID, _ = v.(string)
		default:
			n.Metadata[k] = v
		}
	}
	return domain.ScoredNode{Node: n, Score: h.Score}
}

// DeleteByFile removes every point whose file_name payload matches.
func (s *Store) DeleteByFile(ctx context.Context, collection, fileName string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key":   domain.MetaFileName,
					"match": map[string]any{"value": fileName},
				},
			},
		},
	}
	return s.do(ctx, http.MethodPost, "/collections/"+collection+"/points/delete?wait=true", body, nil)
}

// CollectionExists checks for the collection without creating it.
func (s *Store) CollectionExists(ctx context.Context, collection string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"/collections/"+collection, nil)
	if err != nil {
		return false, err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("qdrant GET /collections/%s: %w", collection, err)
	}
	defer drain(resp)
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("qdrant GET /collections/%s: %s", collection, resp.Status)
	}
}

// PointCount returns the exact point count, 0 for a missing collection.
func (s *Store) PointCount(ctx context.Context, collection string) (int, error) {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, "/collections/"+collection+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Close releases the shared endpoint client once every store handle for
// that endpoint has closed.
func (s *Store) Close() error {
	releaseClient(s.url)
	return nil
}

func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer drain(resp)
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (s *Store) setHeaders(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
