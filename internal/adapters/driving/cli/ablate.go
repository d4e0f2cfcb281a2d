package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/raglab-cli/internal/config"
	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/services"
	"github.com/custodia-labs/raglab-cli/internal/dataset"
	"github.com/custodia-labs/raglab-cli/internal/logger"
)

var (
	ablateGrid       string
	ablateDataset    string
	ablateLimit      int
	ablateSkipIngest bool
	ablateOutDir     string
)

var ablateCmd = &cobra.Command{
	Use:   "ablate",
	Short: "Run the full ablation matrix",
	Long: `Expands the grid file into every experiment configuration, ingests the
corpus once per distinct ingestion fingerprint and evaluates each
configuration against the labeled dataset.

Results are written to the sqlite store and to timestamped CSV files under
the output directory. Failed queries degrade to zero-score rows; failed
configurations are skipped so the rest of the matrix still completes.`,
	Args: cobra.NoArgs,
	RunE: runAblate,
}

func init() {
	ablateCmd.Flags().StringVarP(&ablateGrid, "grid", "g", "", "grid YAML file (required)")
	ablateCmd.Flags().StringVarP(&ablateDataset, "dataset", "d", "", "labeled dataset CSV (required)")
	ablateCmd.Flags().IntVar(&ablateLimit, "limit", 0, "evaluate only the first N dataset rows")
	ablateCmd.Flags().BoolVar(&ablateSkipIngest, "skip-ingest", false, "assume collections are already ingested")
	ablateCmd.Flags().StringVar(&ablateOutDir, "out", "", "override the report output directory")
	_ = ablateCmd.MarkFlagRequired("grid")
	_ = ablateCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(ablateCmd)
}

func runAblate(cmd *cobra.Command, _ []string) error {
	grid, err := config.LoadGrid(ablateGrid, baseParams())
	if err != nil {
		return err
	}
	configs, err := grid.GenerateConfigs()
	if err != nil {
		return err
	}
	queries, err := dataset.LoadQueries(ablateDataset)
	if err != nil {
		return err
	}
	cmd.Printf("Grid: %d configurations, %d dataset queries\n", len(configs), len(queries))

	st, err := openStores()
	if err != nil {
		return err
	}
	defer st.close()

	runner := services.NewBatchRunner(configs, queries, registry, st.vectors, st.parents, st.results, settings.EvalWorkers)
	ctx := cmd.Context()

	if !ablateSkipIngest {
		if err := runner.RunIngestion(ctx); err != nil {
			// Broken groups are skipped at evaluation time; the rest
			// of the matrix still runs.
			logger.Error("ingestion incomplete: %v", err)
		}
	}

	summaries, details, err := runner.RunEvaluation(ctx, ablateLimit)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	outDir := settings.OutputDir
	if ablateOutDir != "" {
		outDir = ablateOutDir
	}
	collector := services.NewResultsCollector(st.results, outDir)
	artifacts, err := collector.Persist(ctx, summaries, details)
	if err != nil {
		return fmt.Errorf("persist results: %w", err)
	}

	printSummaries(cmd, summaries)
	cmd.Printf("Reports: %s, %s, %s\n", artifacts.SummaryCSV, artifacts.DetailsCSV, artifacts.MetaJSON)
	return nil
}

func printSummaries(cmd *cobra.Command, summaries []domain.Summary) {
	if len(summaries) == 0 {
		cmd.Println("No configurations evaluated.")
		return
	}

	best := 0
	for i, s := range summaries {
		if s.HitRate > summaries[best].HitRate ||
			(s.HitRate == summaries[best].HitRate && s.MRR > summaries[best].MRR) {
			best = i
		}
	}

	cmd.Println()
	cmd.Printf("%-16s %-36s %8s %8s %8s %10s\n", "EXPERIMENT", "DESCRIPTION", "HIT", "MRR", "NDCG", "LATENCY")
	for i, s := range summaries {
		marker := " "
		if i == best {
			marker = "*"
		}
		cmd.Printf("%s%-15s %-36s %8.4f %8.4f %8.4f %8.0fms\n",
			marker, s.ExperimentID, s.Description, s.HitRate, s.MRR, s.NDCG, s.AvgLatencyMS)
	}
	cmd.Println()
	cmd.Printf("Best: %s (%s) hit rate %.4f\n",
		summaries[best].ExperimentID, summaries[best].Description, summaries[best].HitRate)
}
