package domain

// DatasetQuery is one labeled row of the evaluation dataset.
type DatasetQuery struct {
	// Question is the query text sent to the retriever.
	Question string

	// GroundTruth is the text a correct retrieval must contain or match.
	GroundTruth string

	// Category groups questions for reporting. Optional.
	Category string
}

// EvaluationRecord is one (configuration, query) detail row.
type EvaluationRecord struct {
	ExperimentID string
	Description  string
	Category     string
	Question     string

	// Hit is 1 when any of the top-k nodes matched the ground truth.
	Hit int

	// MRR is 1/rank of the first hit, 0 on a miss.
	MRR float64

	// NDCG is NDCG@k over the binary relevance sequence.
	NDCG float64

	GroundTruth string

	// RetrievedTop is a newline-joined preview of the top returned
	// snippets, "N/A" when nothing came back.
	RetrievedTop string

	// Error carries the failure annotation when the query was degraded
	// to a zero-score record instead of aborting the batch.
	Error string
}

// Summary aggregates the EvaluationRecords of one configuration.
type Summary struct {
	ExperimentID     string
	Description      string
	ChunkingStrategy string
	ChunkSizeChild   int
	ChunkOverlap     int
	EnableHybrid     bool
	EnableAutoMerge  bool
	EnableRerank     bool
	CollectionName   string

	HitRate      float64
	MRR          float64
	NDCG         float64
	AvgLatencyMS float64
	TotalQueries int
}
