// Package chunkers provides the document chunking strategies: fixed
// token-window, recursive separator, hierarchical sentence and semantic
// breakpoint splitting. All strategies share one contract: documents in,
// either a flat node list or a parent/child node pair out.
package chunkers

import (
	"context"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

// Result is the output of one chunking pass. Flat strategies fill Nodes;
// hierarchical strategies fill Parents and Children instead.
type Result struct {
	Nodes    []domain.Node
	Parents  []domain.Node
	Children []domain.Node
}

// Hierarchical reports whether the result carries a parent/child pair.
func (r *Result) Hierarchical() bool {
	return len(r.Parents) > 0 || len(r.Children) > 0
}

// Searchable returns the nodes that get embedded and written to the
// vector store: children for hierarchical output, all nodes otherwise.
// Parents are never embedded.
func (r *Result) Searchable() []domain.Node {
	if r.Hierarchical() {
		return r.Children
	}
	return r.Nodes
}

// Chunker transforms documents into a flat or hierarchical node set.
type Chunker interface {
	// Name returns the strategy name used in experiment configurations.
	Name() string

	// Chunk splits the documents. Implementations must not mutate docs.
	Chunk(ctx context.Context, docs []domain.Document) (*Result, error)
}

func baseMetadata(doc domain.Document) map[string]any {
	md := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		md[k] = v
	}
	md[domain.MetaFileName] = doc.FileName
	return md
}
