package domain

// Metadata keys shared between chunkers, the vector store payload and the
// parent side-store. Kept as constants so the retrieval path and the
// deletion-by-file path agree on spelling.
const (
	MetaFileName      = "file_name"
	MetaHeaderPath    = "header_path"
	MetaNodeType      = "node_type"
	MetaParentID      = "parent_id"
	MetaSentenceIndex = "sentence_index"
)

// Node types stored under MetaNodeType.
const (
	NodeTypeFlat   = "flat"
	NodeTypeParent = "parent"
	NodeTypeChild  = "child"
)

// Document is a raw input document before chunking.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// FileName is the base name of the originating file.
	FileName string

	// Text is the full document text.
	Text string

	// Metadata contains arbitrary key-value pairs copied onto every
	// node produced from this document.
	Metadata map[string]any
}

// Node is a unit of indexed text. Flat chunkers emit standalone nodes;
// hierarchical chunkers emit child nodes that reference a parent node
// through ParentID. Every node belongs to exactly one logical collection.
type Node struct {
	// ID is the stable identifier of the node.
	ID string

	// Text is the raw text span.
	Text string

	// ParentID references the parent node holding the larger span this
	// node was cut from. Empty for flat nodes and for parents themselves.
	// Parents are retrievable only by ID lookup, never by vector search.
	ParentID string

	// Metadata holds source file, header path, node type and position.
	Metadata map[string]any

	// Embedding is the dense vector. Nil until the node is embedded.
	// Parents are never embedded.
	Embedding []float32

	// SparseIndices and SparseValues are the parallel arrays of the
	// lexical sparse vector. Populated only when hybrid search is
	// enabled at ingestion time.
	SparseIndices []uint32
	SparseValues  []float32
}

// FileName returns the source file recorded in the node metadata.
func (n *Node) FileName() string {
	if n.Metadata == nil {
		return ""
	}
	if v, ok := n.Metadata[MetaFileName].(string); ok {
		return v
	}
	return ""
}

// ParentRecord is the side-store representation of a parent node. The
// vector store owns child vectors; the parent store owns these records,
// keyed by (collection name, node ID).
type ParentRecord struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	FileName   string `json:"file_name"`
	HeaderPath string `json:"header_path"`

	// ChildCount is the number of children cut from this parent. The
	// auto-merge policy compares retrieved siblings against it.
	ChildCount int `json:"child_count"`
}

// ScoredNode is a retrieval candidate with its relevance score.
type ScoredNode struct {
	Node  Node
	Score float64
}

// CollectionStat is one collection in the ingestion ledger.
type CollectionStat struct {
	Name      string
	FileCount int
}

// DebugChunk is the provenance record attached to a tool-call retrieval:
// a short snippet, the score and the source file of one returned node.
type DebugChunk struct {
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	SourceFile string  `json:"source_file"`
}
