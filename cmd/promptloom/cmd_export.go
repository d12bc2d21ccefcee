package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/internal/export"
)

var exportOutPath string

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <call.log.yaml>",
		Short: "Export a call log as HTML",
		Long: `Export the markdown message content of one call log as a standalone
HTML document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			html, err := export.CallLogHTML(args[0])
			if err != nil {
				return err
			}
			if exportOutPath == "" {
				_, err := cmd.OutOrStdout().Write(html)
				return err
			}
			if err := os.WriteFile(exportOutPath, html, 0o644); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", exportOutPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&exportOutPath, "out", "o", "", "Output HTML file (default: stdout)")
	return cmd
}
