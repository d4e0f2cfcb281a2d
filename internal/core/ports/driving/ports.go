package driving

import (
	"context"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

// Ingestor loads documents, chunks them according to the experiment
// configuration, embeds the searchable nodes and persists everything.
type Ingestor interface {
	// IngestDirectory ingests every supported file under dir
	// (recursively) and returns the number of nodes written.
	IngestDirectory(ctx context.Context, dir string) (int, error)

	// IngestDocuments ingests already-loaded documents.
	IngestDocuments(ctx context.Context, docs []domain.Document) (int, error)

	// DeleteFile removes a file's vectors, parent records and ledger row.
	DeleteFile(ctx context.Context, fileName string) error
}

// Retriever answers queries against an ingested collection.
type Retriever interface {
	// Retrieve returns the final ranked candidates for the query, after
	// the configured hybrid/auto-merge/rerank combination.
	Retrieve(ctx context.Context, query string) ([]domain.ScoredNode, error)

	// RetrieveDebug returns the concatenated context for answer
	// synthesis plus per-node provenance, the tool-call wrapper shape.
	RetrieveDebug(ctx context.Context, query string) (string, []domain.DebugChunk, error)
}

// ExperimentRunner drives the ablation matrix.
type ExperimentRunner interface {
	// RunIngestion ingests once per distinct fingerprint, skipping
	// collections that already hold data.
	RunIngestion(ctx context.Context) error

	// RunEvaluation evaluates every configuration against the labeled
	// dataset and returns summaries plus per-query details. limit > 0
	// restricts the dataset to its first rows.
	RunEvaluation(ctx context.Context, limit int) ([]domain.Summary, []domain.EvaluationRecord, error)
}
