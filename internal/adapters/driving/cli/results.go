package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/raglab-cli/internal/core/services"
)

var resultsLimit int

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show persisted ablation results",
	Long:  `Lists the summary rows of past ablation runs, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runResults,
}

func init() {
	resultsCmd.Flags().IntVarP(&resultsLimit, "limit", "n", 20, "maximum number of rows")
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, _ []string) error {
	st, err := openStores()
	if err != nil {
		return err
	}
	defer st.close()

	collector := services.NewResultsCollector(st.results, settings.OutputDir)
	history, err := collector.History(cmd.Context())
	if err != nil {
		return err
	}
	if len(history) == 0 {
		cmd.Println("No results recorded yet.")
		return nil
	}
	if resultsLimit > 0 && len(history) > resultsLimit {
		history = history[:resultsLimit]
	}

	cmd.Printf("%-16s %-36s %8s %8s %8s\n", "EXPERIMENT", "DESCRIPTION", "HIT", "MRR", "NDCG")
	for _, s := range history {
		cmd.Printf("%-16s %-36s %8.4f %8.4f %8.4f\n",
			s.ExperimentID, s.Description, s.HitRate, s.MRR, s.NDCG)
	}
	return nil
}
