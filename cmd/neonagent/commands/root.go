// Package commands defines all Cobra CLI commands for the neonagent binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sogacsa/neonagent/internal/audit"
	"github.com/sogacsa/neonagent/internal/config"
	"github.com/sogacsa/neonagent/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "neonagent",
		Short: "Retrieval-augmented chat assistant for technical equipment documentation",
		Long: `neonagent answers questions about industrial gas equipment — compressors,
dryers, generators — grounded strictly in the ingested technical documentation.

Each chat turn rewrites the question into a search query, retrieves the most
relevant documentation chunks from the Qdrant vector store, generates a
grounded answer, and keeps a rolling summary of the conversation.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.neonagent/config.yaml).
See 'neonagent --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is the lowest layer: never overrides real env vars.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.neonagent/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
