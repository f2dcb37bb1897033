// Package cmd provides the CLI commands for retrievald.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/civicmesh/retrieval/pkg/version"
)

var (
	configPath string
	logLevel   string
)

// NewRootCmd creates the root command for the retrievald CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrievald",
		Short: "Hybrid retrieval service for community knowledge bases",
		Long: `retrievald serves hybrid search (semantic + keyword) over a chunked
knowledge corpus, with optional cross-encoder reranking and bounded
grounding-context assembly for AI assistants.

Run 'retrievald serve' to start the HTTP API, or 'retrievald index'
to load chunks into the on-disk indexes.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("retrievald version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/retrievald/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
