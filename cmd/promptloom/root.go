package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promptloom",
		Short: "Promptloom - template-driven LLM prompt chaining",
		Long: `Promptloom renders prompt templates whose inline llmquery calls are
executed against an LLM backend.

Every exchange is captured as a human-readable YAML call log that stays
complete and parseable chunk by chunk while the response streams in.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newRenderCommand())
	cmd.AddCommand(newNewCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newRunsCommand())
	cmd.AddCommand(newExportCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
