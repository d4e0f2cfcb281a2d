package services

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/raglab-cli/internal/chunkers"
	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
	"github.com/custodia-labs/raglab-cli/internal/logger"
	"github.com/custodia-labs/raglab-cli/internal/sparse"
)

// embedBatchSize caps how many texts go to the embedding provider per
// request. DashScope rejects batches above 25; 20 leaves headroom.
const embedBatchSize = 20

// supportedExtensions are the file types IngestDirectory picks up.
var supportedExtensions = map[string]bool{
	".md":  true,
	".txt": true,
}

// SupportedFile reports whether the ingestion pipeline accepts path,
// judged by extension. Watch-mode callers use it to filter events.
func SupportedFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Ingestion loads documents into the experiment's collection: chunk,
// side-store parents, embed children in batches, sparse-encode when hybrid
// search is on, then upsert. One Ingestion serves one configuration.
type Ingestion struct {
	cfg      *domain.ExperimentConfig
	chunker  chunkers.Chunker
	embedder driven.EmbeddingService
	vectors  driven.VectorStore
	parents  driven.ParentStore
	results  driven.ResultStore
	encoder  *sparse.Encoder
}

// NewIngestion wires an ingestion pipeline for one experiment config.
func NewIngestion(
	cfg *domain.ExperimentConfig,
	chunker chunkers.Chunker,
	embedder driven.EmbeddingService,
	vectors driven.VectorStore,
	parents driven.ParentStore,
	results driven.ResultStore,
) *Ingestion {
	return &Ingestion{
		cfg:      cfg,
		chunker:  chunker,
		embedder: embedder,
		vectors:  vectors,
		parents:  parents,
		results:  results,
		encoder:  sparse.NewEncoder(),
	}
}

// IngestDirectory walks dir recursively, loads every supported file and
// ingests the lot as one document batch. Returns the number of nodes
// written to the vector store.
func (s *Ingestion) IngestDirectory(ctx context.Context, dir string) (int, error) {
	var docs []domain.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, domain.Document{
			ID:       uuid.NewString(),
			FileName: filepath.Base(path),
			Text:     string(data),
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, err)
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("%w: no .md or .txt files under %s", domain.ErrEmptyDataset, dir)
	}
	logger.Info("loaded %d documents from %s", len(docs), dir)
	return s.IngestDocuments(ctx, docs)
}

// IngestDocuments runs the full pipeline over already-loaded documents.
func (s *Ingestion) IngestDocuments(ctx context.Context, docs []domain.Document) (int, error) {
	collection := s.cfg.CollectionName()
	logger.Section("Ingestion")
	logger.Debug("strategy=%s collection=%s hybrid=%v",
		s.cfg.ChunkingStrategy, collection, s.cfg.EnableHybrid)

	res, err := s.chunker.Chunk(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("chunk (%s): %w", s.chunker.Name(), err)
	}

	if res.Hierarchical() {
		if err := s.storeParents(ctx, collection, res); err != nil {
			return 0, err
		}
	}

	nodes := res.Searchable()
	if len(nodes) == 0 {
		return 0, nil
	}
	logger.Debug("chunked into %d searchable nodes (%d parents)",
		len(nodes), len(res.Parents))

	if err := s.embedNodes(ctx, nodes); err != nil {
		return 0, err
	}
	if s.cfg.EnableHybrid {
		s.sparseEncode(nodes)
	}

	if err := s.vectors.EnsureCollection(ctx, collection, s.cfg.EmbeddingDim, s.cfg.EnableHybrid); err != nil {
		return 0, fmt.Errorf("ensure collection %s: %w", collection, err)
	}
	if err := s.vectors.Upsert(ctx, collection, nodes); err != nil {
		return 0, fmt.Errorf("upsert %d nodes: %w", len(nodes), err)
	}

	for _, doc := range docs {
		if err := s.results.RecordFile(ctx, collection, doc.FileName); err != nil {
			return 0, fmt.Errorf("record file %s: %w", doc.FileName, err)
		}
	}
	logger.Info("ingested %d nodes into %s", len(nodes), collection)
	return len(nodes), nil
}

// DeleteFile removes a file's vectors, its parent records and its ledger
// row, in that order. Vector deletion failing leaves the ledger intact so
// a retry still sees the file.
func (s *Ingestion) DeleteFile(ctx context.Context, fileName string) error {
	collection := s.cfg.CollectionName()
	if err := s.vectors.DeleteByFile(ctx, collection, fileName); err != nil {
		return fmt.Errorf("delete vectors for %s: %w", fileName, err)
	}
	if err := s.parents.DeleteByFile(ctx, collection, fileName); err != nil {
		return fmt.Errorf("delete parents for %s: %w", fileName, err)
	}
	if err := s.results.RemoveFile(ctx, collection, fileName); err != nil {
		return fmt.Errorf("remove ledger row for %s: %w", fileName, err)
	}
	logger.Info("deleted %s from %s", fileName, collection)
	return nil
}

// storeParents counts children per parent and writes parent records to the
// side store. ChildCount is what the auto-merge policy divides by later.
func (s *Ingestion) storeParents(ctx context.Context, collection string, res *chunkers.Result) error {
	counts := make(map[string]int, len(res.Parents))
	for i := range res.Children {
		counts[res.Children[i].ParentID]++
	}

	records := make([]domain.ParentRecord, 0, len(res.Parents))
	for i := range res.Parents {
		p := &res.Parents[i]
		header, _ := p.Metadata[domain.MetaHeaderPath].(string)
		records = append(records, domain.ParentRecord{
			ID:         p.ID,
			Text:       p.Text,
			FileName:   p.FileName(),
			HeaderPath: header,
			ChildCount: counts[p.ID],
		})
	}
	if err := s.parents.Put(ctx, collection, records); err != nil {
		return fmt.Errorf("store %d parents: %w", len(records), err)
	}
	return nil
}

// embedNodes fills Embedding on every node, batching requests and
// validating each returned vector against the configured dimension.
func (s *Ingestion) embedNodes(ctx context.Context, nodes []domain.Node) error {
	for start := 0; start < len(nodes); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		texts := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			texts = append(texts, nodes[i].Text)
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embed batch [%d:%d]: got %d vectors for %d texts", start, end, len(vecs), len(texts))
		}
		for i, v := range vecs {
			if len(v) != s.cfg.EmbeddingDim {
				return fmt.Errorf("%w: model %s returned %d dims, collection expects %d",
					domain.ErrDimensionMismatch, s.embedder.ModelName(), len(v), s.cfg.EmbeddingDim)
			}
			nodes[start+i].Embedding = v
		}
		logger.Debug("embedded %d/%d nodes", end, len(nodes))
	}
	return nil
}

func (s *Ingestion) sparseEncode(nodes []domain.Node) {
	texts := make([]string, len(nodes))
	for i := range nodes {
		texts[i] = nodes[i].Text
	}
	indices, values := s.encoder.EncodeDocuments(texts)
	for i := range nodes {
		nodes[i].SparseIndices = indices[i]
		nodes[i].SparseValues = values[i]
	}
}
