package cli

import (
	"github.com/spf13/cobra"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List ingested collections",
	Long:  `Lists every collection in the ingestion ledger with its file count.`,
	Args:  cobra.NoArgs,
	RunE:  runCollections,
}

var collectionsFilesCmd = &cobra.Command{
	Use:   "files [collection]",
	Short: "List the files ingested into a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionsFiles,
}

func init() {
	collectionsCmd.AddCommand(collectionsFilesCmd)
	rootCmd.AddCommand(collectionsCmd)
}

func runCollections(cmd *cobra.Command, _ []string) error {
	st, err := openStores()
	if err != nil {
		return err
	}
	defer st.close()

	stats, err := st.results.ListCollections(cmd.Context())
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		cmd.Println("No collections ingested yet.")
		return nil
	}

	cmd.Println("Collections:")
	for _, s := range stats {
		cmd.Printf("  %s (%d files)\n", s.Name, s.FileCount)
	}
	return nil
}

func runCollectionsFiles(cmd *cobra.Command, args []string) error {
	collection := args[0]

	st, err := openStores()
	if err != nil {
		return err
	}
	defer st.close()

	files, err := st.results.ListFiles(cmd.Context(), collection)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		cmd.Printf("No files recorded for %s.\n", collection)
		return nil
	}

	cmd.Printf("Files in %s:\n", collection)
	for _, f := range files {
		cmd.Printf("  %s\n", f)
	}
	return nil
}
