package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
	"github.com/custodia-labs/raglab-cli/internal/core/services"
)

var (
	queryExperiment  string
	queryJSON        bool
	queryShowContext bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Query an ingested collection",
	Long: `Runs one retrieval against the experiment's collection and prints the
returned chunks with scores and source files.

The retrieval path follows the experiment configuration: dense or hybrid
search, optional auto-merge to parent blocks, optional reranking.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryExperiment, "experiment", "e", "", "experiment YAML file (default: compiled-in defaults)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	queryCmd.Flags().BoolVar(&queryShowContext, "context", false, "print the concatenated answer context")
	rootCmd.AddCommand(queryCmd)
}

// queryOutput is the JSON shape of one retrieval.
type queryOutput struct {
	Question string              `json:"question"`
	Context  string              `json:"context"`
	Chunks   []domain.DebugChunk `json:"chunks"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := args[0]

	cfg, err := loadExperiment(queryExperiment)
	if err != nil {
		return err
	}

	st, err := openStores()
	if err != nil {
		return err
	}
	defer st.close()

	embedder, err := registry.Embedding(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	var reranker driven.RerankerService
	if cfg.EnableRerank {
		reranker, err = registry.Reranker(cfg)
		if err != nil {
			return err
		}
	}

	retriever := services.NewRetrieval(cfg, embedder, reranker, st.vectors, st.parents)
	contextText, chunks, err := retriever.RetrieveDebug(cmd.Context(), question)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, queryOutput{Question: question, Context: contextText, Chunks: chunks})
	}
	return outputQueryTable(cmd, contextText, chunks)
}

func outputQueryJSON(cmd *cobra.Command, out queryOutput) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryTable(cmd *cobra.Command, contextText string, chunks []domain.DebugChunk) error {
	if len(chunks) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, c := range chunks {
		cmd.Printf("  [%d] %s (%.4f)\n", i+1, c.SourceFile, c.Score)
		cmd.Printf("      %s\n", c.Text)
		cmd.Println()
	}

	if queryShowContext {
		cmd.Println("Context:")
		cmd.Println(contextText)
	}
	return nil
}
