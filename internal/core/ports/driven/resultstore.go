package driven

import (
	"context"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

// ResultStore persists evaluation output and the ledger of ingested files.
type ResultStore interface {
	// SaveSummaries appends per-configuration summary rows for one batch
	// run, identified by tag.
	SaveSummaries(ctx context.Context, tag string, summaries []domain.Summary) error

	// SaveDetails appends per-query detail rows for one batch run.
	SaveDetails(ctx context.Context, tag string, details []domain.EvaluationRecord) error

	// LoadSummaries returns all persisted summary rows, newest first.
	LoadSummaries(ctx context.Context) ([]domain.Summary, error)

	// RecordFile notes that a file was ingested into a collection.
	// Recording the same (file, collection) pair twice is a no-op.
	RecordFile(ctx context.Context, collection, fileName string) error

	// RemoveFile deletes the ledger row for a file in a collection.
	RemoveFile(ctx context.Context, collection, fileName string) error

	// ListFiles returns the files recorded for a collection, most
	// recently ingested first.
	ListFiles(ctx context.Context, collection string) ([]string, error)

	// ListCollections returns every collection with at least one ledger
	// row, alphabetically, with its file count.
	ListCollections(ctx context.Context) ([]domain.CollectionStat, error)

	// Close releases resources.
	Close() error
}
