// Package dataset reads the labeled evaluation dataset and writes the
// CSV reports produced by a batch run.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

// Dataset column headers. Matching is case-insensitive and ignores
// surrounding whitespace.
const (
	colQuestion    = "question"
	colGroundTruth = "ground truth text"
	colCategory    = "category"
)

// LoadQueries reads the evaluation dataset from a CSV file. The header row
// must contain Question and Ground Truth Text columns; Category is
// optional. Rows with an empty question are skipped.
func LoadQueries(path string) ([]domain.DatasetQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrEmptyDataset, path)
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	qCol, ok := idx[colQuestion]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %s has no Question column", domain.ErrInvalidConfig, path)
	}
	gtCol, ok := idx[colGroundTruth]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %s has no Ground Truth Text column", domain.ErrInvalidConfig, path)
	}
	catCol, hasCat := idx[colCategory]

	queries := make([]domain.DatasetQuery, 0, len(rows)-1)
	for _, row := range rows[1:] {
		q := field(row, qCol)
		if q == "" {
			continue
		}
		dq := domain.DatasetQuery{
			Question:    q,
			GroundTruth: field(row, gtCol),
		}
		if hasCat {
			dq.Category = field(row, catCol)
		}
		queries = append(queries, dq)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: %s has no usable rows", domain.ErrEmptyDataset, path)
	}
	return queries, nil
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// WriteSummaryCSV writes one row per configuration.
func WriteSummaryCSV(path string, summaries []domain.Summary) error {
	rows := [][]string{{
		"experiment_id", "description", "chunking_strategy", "chunk_size_child",
		"chunk_overlap", "enable_hybrid", "enable_auto_merge", "enable_rerank",
		"collection", "hit_rate", "mrr", "ndcg", "avg_latency_ms", "total_queries",
	}}
	for _, s := range summaries {
		rows = append(rows, []string{
			s.ExperimentID,
			s.Description,
			s.ChunkingStrategy,
			strconv.Itoa(s.ChunkSizeChild),
			strconv.Itoa(s.ChunkOverlap),
			strconv.FormatBool(s.EnableHybrid),
			strconv.FormatBool(s.EnableAutoMerge),
			strconv.FormatBool(s.EnableRerank),
			s.CollectionName,
			formatFloat(s.HitRate),
			formatFloat(s.MRR),
			formatFloat(s.NDCG),
			formatFloat(s.AvgLatencyMS),
			strconv.Itoa(s.TotalQueries),
		})
	}
	return writeCSV(path, rows)
}

// WriteDetailsCSV writes one row per (configuration, query).
func WriteDetailsCSV(path string, details []domain.EvaluationRecord) error {
	rows := [][]string{{
		"experiment_id", "description", "category", "question", "hit",
		"mrr", "ndcg", "ground_truth", "retrieved_top", "error",
	}}
	for _, d := range details {
		rows = append(rows, []string{
			d.ExperimentID,
			d.Description,
			d.Category,
			d.Question,
			strconv.Itoa(d.Hit),
			formatFloat(d.MRR),
			formatFloat(d.NDCG),
			d.GroundTruth,
			d.RetrievedTop,
			d.Error,
		})
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}
