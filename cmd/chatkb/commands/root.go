// Package commands defines all Cobra CLI commands for the chatkb binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chatkb/chatkb/internal/audit"
	"github.com/chatkb/chatkb/internal/config"
	"github.com/chatkb/chatkb/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatkb",
		Short: "chatkb — a knowledge-base backend for retrieval-grounded chatbots",
		Long: `chatkb ingests documents into per-chatbot vector indexes and answers
questions grounded in the retrieved content.

Documents are chunked, embedded, and stored in an append-only flat index per
chatbot; queries retrieve the nearest chunks and hand them to a chat model as
context. Model provider is selected via the MODEL_PROVIDER environment
variable or a YAML config file (~/.chatkb/config.yaml).
See 'chatkb --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env is a development convenience; absence is normal.
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.chatkb/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewAskCmd(),
		NewVersionCmd(),
	)

	return root
}
