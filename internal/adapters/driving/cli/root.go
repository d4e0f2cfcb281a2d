// Package cli wires the cobra command tree. It is the composition root:
// settings, the component registry and the storage adapters are built
// here and handed to the core services.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/raglab-cli/internal/config"
	"github.com/custodia-labs/raglab-cli/internal/core/services"
	"github.com/custodia-labs/raglab-cli/internal/logger"
)

// version is overridden at release build time via -ldflags.
var version = "dev"

var (
	flagVerbose  bool
	flagSettings string

	// settings and registry are populated once by initRuntime and read
	// by every command. Tests pre-set them and flip runtimeReady.
	settings     config.Settings
	registry     *services.Registry
	runtimeReady bool
)

var rootCmd = &cobra.Command{
	Use:   "raglab",
	Short: "Retrieval experiment lab for RAG pipelines",
	Long: `raglab ingests a document corpus under ablation-driven experiment
configurations and evaluates retrieval quality against a labeled dataset.

Experiments are described in YAML; a grid file expands into the full
ablation matrix. Ingested data lands in qdrant, parents in a local bbolt
store and results in sqlite plus timestamped CSV reports.`,
	SilenceUsage:      true,
	PersistentPreRunE: initRuntime,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose progress output")
	rootCmd.PersistentFlags().StringVar(&flagSettings, "settings", "", "path to the settings file (default ~/.raglab/config.toml)")
}

func initRuntime(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(flagVerbose)
	if runtimeReady {
		return nil
	}
	s, err := config.LoadSettings(flagSettings)
	if err != nil {
		return err
	}
	settings = s
	registry = buildRegistry(s)
	runtimeReady = true
	return nil
}

// Execute runs the command tree. ctx cancellation aborts long commands
// such as ablate runs and watch loops.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
