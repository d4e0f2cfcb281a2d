// Package dashscope provides a reranker service adapter using the
// DashScope text-rerank API.
package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
)

// Ensure RerankerService implements the interface.
var _ driven.RerankerService = (*RerankerService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1/services/rerank/text-rerank/text-rerank"
	DefaultModel   = "gte-rerank"
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond throttles rerank calls.
	DefaultRequestsPerSecond = 5
)

// Config holds configuration for the DashScope reranker.
type Config struct {
	// APIKey is the DashScope API key (required).
	APIKey string

	// BaseURL is the rerank endpoint (default: DashScope text-rerank).
	BaseURL string

	// Model is the rerank model to use (default: gte-rerank).
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// RequestsPerSecond caps the request rate (default: 5).
	RequestsPerSecond float64
}

// RerankerService re-scores candidates with a DashScope cross-encoder.
type RerankerService struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	apiKey  string
	model   string
}

type rerankRequest struct {
	Model string `json:"model"`
	Input struct {
		Query     string   `json:"query"`
		Documents []string `json:"documents"`
	} `json:"input"`
	Parameters struct {
		ReturnDocuments bool `json:"return_documents"`
		TopN            int  `json:"top_n"`
	} `json:"parameters"`
}

type rerankResponse struct {
	Output struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	} `json:"output"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewRerankerService creates a new DashScope reranker.
func NewRerankerService(cfg Config) (*RerankerService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("dashscope: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	return &RerankerService{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Rerank scores documents against the query and returns the top n results
// in descending score order.
func (s *RerankerService) Rerank(ctx context.Context, query string, documents []string, topN int) ([]driven.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("dashscope: rate limit wait: %w", err)
	}

	var reqBody rerankRequest
	reqBody.Model = s.model
	reqBody.Input.Query = query
	reqBody.Input.Documents = documents
	reqBody.Parameters.ReturnDocuments = false
	reqBody.Parameters.TopN = topN

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rerankResp rerankResponse
	if err := json.Unmarshal(body, &rerankResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if rerankResp.Message != "" {
			return nil, fmt.Errorf("dashscope rerank error (%s): %s", rerankResp.Code, rerankResp.Message)
		}
		return nil, fmt.Errorf("dashscope rerank error (status %d): %s", resp.StatusCode, string(body))
	}

	results := make([]driven.RerankResult, 0, len(rerankResp.Output.Results))
	for _, r := range rerankResp.Output.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("dashscope rerank: index %d out of range", r.Index)
		}
		results = append(results, driven.RerankResult{Index: r.Index, Score: r.RelevanceScore})
	}
	return results, nil
}

// ModelName returns the name of the rerank model being used.
func (s *RerankerService) ModelName() string {
	return s.model
}
