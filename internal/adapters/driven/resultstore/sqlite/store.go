// Package sqlite persists ablation results and the indexed-file ledger.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
)

var _ driven.ResultStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS experiment_summaries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_tag TEXT NOT NULL,
	experiment_id TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	chunking_strategy TEXT NOT NULL DEFAULT '',
	chunk_size_child INTEGER NOT NULL DEFAULT 0,
	chunk_overlap INTEGER NOT NULL DEFAULT 0,
	enable_hybrid INTEGER NOT NULL DEFAULT 0,
	enable_auto_merge INTEGER NOT NULL DEFAULT 0,
	enable_rerank INTEGER NOT NULL DEFAULT 0,
	collection TEXT NOT NULL DEFAULT '',
	hit_rate REAL NOT NULL DEFAULT 0,
	mrr REAL NOT NULL DEFAULT 0,
	ndcg REAL NOT NULL DEFAULT 0,
	avg_latency_ms REAL NOT NULL DEFAULT 0,
	total_queries INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS evaluation_details (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_tag TEXT NOT NULL,
	experiment_id TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	question TEXT NOT NULL,
	hit INTEGER NOT NULL DEFAULT 0,
	mrr REAL NOT NULL DEFAULT 0,
	ndcg REAL NOT NULL DEFAULT 0,
	ground_truth TEXT NOT NULL DEFAULT '',
	retrieved_top TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS indexed_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT NOT NULL,
	collection TEXT NOT NULL,
	indexed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(filename, collection)
);
`

// Store is the SQLite-backed ResultStore.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the results database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating results dir: %w", err)
	}

	// WAL mode for concurrent readers during long batch runs.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening results db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating results schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SaveSummaries appends the per-configuration rows of one run.
func (s *Store) SaveSummaries(ctx context.Context, tag string, summaries []domain.Summary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin summaries tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO experiment_summaries (
			run_tag, experiment_id, description, chunking_strategy,
			chunk_size_child, chunk_overlap, enable_hybrid,
			enable_auto_merge, enable_rerank, collection,
			hit_rate, mrr, ndcg, avg_latency_ms, total_queries
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare summaries insert: %w", err)
	}
	defer stmt.Close()

	for _, sum := range summaries {
		_, err := stmt.ExecContext(ctx,
			tag, sum.ExperimentID, sum.Description, sum.ChunkingStrategy,
			sum.ChunkSizeChild, sum.ChunkOverlap, sum.EnableHybrid,
			sum.EnableAutoMerge, sum.EnableRerank, sum.CollectionName,
			sum.HitRate, sum.MRR, sum.NDCG, sum.AvgLatencyMS, sum.TotalQueries)
		if err != nil {
			return fmt.Errorf("insert summary %s: %w", sum.ExperimentID, err)
		}
	}
	return tx.Commit()
}

// SaveDetails appends the per-query rows of one run.
func (s *Store) SaveDetails(ctx context.Context, tag string, details []domain.EvaluationRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin details tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO evaluation_details (
			run_tag, experiment_id, description, category, question,
			hit, mrr, ndcg, ground_truth, retrieved_top, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare details insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range details {
		_, err := stmt.ExecContext(ctx,
			tag, d.ExperimentID, d.Description, d.Category, d.Question,
			d.Hit, d.MRR, d.NDCG, d.GroundTruth, d.RetrievedTop, d.Error)
		if err != nil {
			return fmt.Errorf("insert detail for %s: %w", d.ExperimentID, err)
		}
	}
	return tx.Commit()
}

// LoadSummaries returns every persisted summary, newest rows first.
func (s *Store) LoadSummaries(ctx context.Context) ([]domain.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT experiment_id, description, chunking_strategy,
			chunk_size_child, chunk_overlap, enable_hybrid,
			enable_auto_merge, enable_rerank, collection,
			hit_rate, mrr, ndcg, avg_latency_ms, total_queries
		FROM experiment_summaries
		ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []domain.Summary
	for rows.Next() {
		var sum domain.Summary
		if err := rows.Scan(
			&sum.ExperimentID, &sum.Description, &sum.ChunkingStrategy,
			&sum.ChunkSizeChild, &sum.ChunkOverlap, &sum.EnableHybrid,
			&sum.EnableAutoMerge, &sum.EnableRerank, &sum.CollectionName,
			&sum.HitRate, &sum.MRR, &sum.NDCG, &sum.AvgLatencyMS, &sum.TotalQueries,
		); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// RecordFile notes that a file was ingested into a collection. Duplicate
// pairs are ignored.
func (s *Store) RecordFile(ctx context.Context, collection, fileName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indexed_files (filename, collection) VALUES (?, ?)
		ON CONFLICT(filename, collection) DO NOTHING`, fileName, collection)
	if err != nil {
		return fmt.Errorf("record file %s: %w", fileName, err)
	}
	return nil
}

// RemoveFile deletes the ledger row for a (file, collection) pair.
func (s *Store) RemoveFile(ctx context.Context, collection, fileName string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM indexed_files WHERE filename = ? AND collection = ?`,
		fileName, collection)
	if err != nil {
		return fmt.Errorf("remove file %s: %w", fileName, err)
	}
	return nil
}

// ListFiles returns the files recorded for a collection, most recent first.
func (s *Store) ListFiles(ctx context.Context, collection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename FROM indexed_files
		WHERE collection = ?
		ORDER BY indexed_at DESC, id DESC`, collection)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan filename: %w", err)
		}
		files = append(files, name)
	}
	return files, rows.Err()
}

// ListCollections returns every collection in the ledger with its file
// count, alphabetically.
func (s *Store) ListCollections(ctx context.Context) ([]domain.CollectionStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, COUNT(*) FROM indexed_files
		GROUP BY collection
		ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var stats []domain.CollectionStat
	for rows.Next() {
		var st domain.CollectionStat
		if err := rows.Scan(&st.Name, &st.FileCount); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
