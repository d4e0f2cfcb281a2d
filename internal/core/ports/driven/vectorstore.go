package driven

import (
	"context"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

// QueryMode selects how the vector store scores candidates.
type QueryMode string

const (
	// QueryModeDense uses pure dense cosine similarity.
	QueryModeDense QueryMode = "dense"

	// QueryModeHybrid blends dense and sparse lexical scores with a
	// weight alpha (dense weight alpha, sparse weight 1-alpha).
	QueryModeHybrid QueryMode = "hybrid"
)

// VectorQuery is one similarity search request.
type VectorQuery struct {
	// Dense is the query embedding. Required.
	Dense []float32

	// SparseIndices and SparseValues are the lexical sparse query
	// vector. Required in hybrid mode, ignored in dense mode.
	SparseIndices []uint32
	SparseValues  []float32

	// Mode selects dense-only or hybrid scoring.
	Mode QueryMode

	// Alpha is the dense weight in hybrid mode. Ignored in dense mode.
	Alpha float64

	// Limit is the maximum number of candidates to return.
	Limit int
}

// VectorStore wraps one vector database collection. Collections are keyed
// by the experiment's collection name; one physical connection is shared
// by every collection on the same endpoint.
type VectorStore interface {
	// EnsureCollection creates the collection with the given dense
	// dimension (and a sparse vector field) if it does not exist yet.
	EnsureCollection(ctx context.Context, collection string, dim int, sparse bool) error

	// Upsert writes embedded nodes into the collection. Nodes must
	// carry a dense embedding; sparse arrays are written when present.
	Upsert(ctx context.Context, collection string, nodes []domain.Node) error

	// Query runs a similarity search and returns scored nodes in
	// descending score order.
	Query(ctx context.Context, collection string, q VectorQuery) ([]domain.ScoredNode, error)

	// DeleteByFile removes every point whose file_name payload matches.
	DeleteByFile(ctx context.Context, collection, fileName string) error

	// CollectionExists reports whether the collection has been created.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// PointCount returns the number of points in the collection, 0 when
	// it does not exist.
	PointCount(ctx context.Context, collection string) (int, error)

	// Close releases the underlying connection. Must be called exactly
	// once at process shutdown.
	Close() error
}
