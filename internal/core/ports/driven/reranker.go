package driven

import "context"

// RerankResult is one document after re-ranking: its position in the
// input slice and the cross-encoder relevance score.
type RerankResult struct {
	// Index is the position of the document in the candidates passed to
	// Rerank.
	Index int

	// Score is the relevance score assigned by the re-ranking model.
	Score float64
}

// RerankerService re-scores an oversampled candidate set against a query
// with a more precise (typically cross-encoder) model.
type RerankerService interface {
	// Rerank scores the candidate documents against the query and
	// returns the top n in descending score order.
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)

	// ModelName returns the name of the re-ranking model being used.
	ModelName() string
}
