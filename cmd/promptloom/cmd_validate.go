package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/internal/validation"
)

var validateSchemaPath string

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate run directories, call logs and context files",
		Long: `Validate promptloom artifacts against their schemas.

The path may be:
  - a run directory: metadata.yaml and every llmcalls/*.log.yaml are checked
  - a single .log.yaml call log
  - a YAML context file, when --schema supplies a JSON Schema for it`,
		Args: cobra.ExactArgs(1),
		RunE: runValidateE,
	}

	cmd.Flags().StringVar(&validateSchemaPath, "schema", "", "JSON Schema for validating a context file")
	return cmd
}

func runValidateE(cmd *cobra.Command, args []string) error {
	path := args[0]

	if validateSchemaPath != "" {
		issues, err := validation.ValidateContextFile(path, validateSchemaPath)
		if err != nil {
			return err
		}
		return reportIssues(cmd, map[string][]string{path: issues})
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		issues, err := validation.ValidateCallLogFile(path)
		if err != nil {
			return err
		}
		return reportIssues(cmd, map[string][]string{path: issues})
	}

	byFile, err := validateRunDir(path)
	if err != nil {
		return err
	}
	return reportIssues(cmd, byFile)
}

// validateRunDir checks the metadata and every call log of one run
// directory.
func validateRunDir(dir string) (map[string][]string, error) {
	byFile := make(map[string][]string)

	metaPath := filepath.Join(dir, "metadata.yaml")
	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("%s does not look like a run directory: %w", dir, err)
	}
	byFile[metaPath] = validation.ValidateRunMetadataBytes(metaData)

	callDir := filepath.Join(dir, "llmcalls")
	entries, err := os.ReadDir(callDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", callDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log.yaml") {
			continue
		}
		p := filepath.Join(callDir, entry.Name())
		issues, err := validation.ValidateCallLogFile(p)
		if err != nil {
			return nil, err
		}
		byFile[p] = issues
	}
	return byFile, nil
}

func reportIssues(cmd *cobra.Command, byFile map[string][]string) error {
	paths := make([]string, 0, len(byFile))
	for p := range byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	failed := 0
	for _, p := range paths {
		issues := byFile[p]
		if len(issues) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s\n", p)
			continue
		}
		failed++
		fmt.Fprintf(cmd.OutOrStdout(), "❌ %s\n", p)
		for _, issue := range issues {
			fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", issue)
		}
	}

	if failed > 0 {
		return &ValidationFailureError{
			Message: fmt.Sprintf("%d of %d document(s) failed validation", failed, len(byFile)),
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d document(s) valid\n", len(byFile))
	return nil
}
