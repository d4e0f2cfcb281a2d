package driven

import (
	"context"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

// ParentStore persists parent nodes outside the vector store. Children are
// vector-searched; parents are fetched back by ID when the auto-merge step
// reconstructs context windows.
type ParentStore interface {
	// Put upserts parent records keyed by (collection, record ID).
	Put(ctx context.Context, collection string, parents []domain.ParentRecord) error

	// GetMany fetches records by ID. Missing IDs are simply absent from
	// the result; no error is raised for them.
	GetMany(ctx context.Context, collection string, ids []string) (map[string]domain.ParentRecord, error)

	// DeleteByFile removes every parent originating from a source file.
	DeleteByFile(ctx context.Context, collection, fileName string) error

	// Close releases resources.
	Close() error
}
