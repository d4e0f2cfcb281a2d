package domain

import "math"

// NDCG computes NDCG@k over a binary relevance sequence. DCG discounts
// each relevant rank by log2(rank+2); IDCG comes from the ideal
// (descending) ordering of the same sequence. An all-zero sequence yields
// 0 rather than dividing by zero.
func NDCG(k int, relevance []int) float64 {
	if k <= 0 {
		return 0
	}
	scores := relevance
	if len(scores) > k {
		scores = scores[:k]
	}

	dcg := 0.0
	relevant := 0
	for i, rel := range scores {
		if rel > 0 {
			dcg += float64(rel) / math.Log2(float64(i)+2)
			relevant++
		}
	}
	if relevant == 0 {
		return 0
	}

	// Binary relevance: the ideal ordering packs all hits at the front.
	idcg := 0.0
	for i := 0; i < relevant; i++ {
		idcg += 1 / math.Log2(float64(i)+2)
	}
	return dcg / idcg
}

// MRR converts a 1-based hit rank into a reciprocal-rank contribution.
// A miss (rank <= 0) contributes 0.
func MRR(hitRank int) float64 {
	if hitRank <= 0 {
		return 0
	}
	return 1 / float64(hitRank)
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or a zero-norm vector yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
