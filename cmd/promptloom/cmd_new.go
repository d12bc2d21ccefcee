package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/internal/wizard"
)

var newForce bool

func newNewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new [name]",
		Short: "Scaffold a new prompt template",
		Long: `Scaffold a new prompt template and its starter context file.

An interactive wizard collects the template name, model and context
keys, then writes <name>.tmpl and <name>.context.yaml into the current
directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initialName := ""
			if len(args) > 0 {
				initialName = args[0]
				if err := wizard.ValidateName(initialName); err != nil {
					return err
				}
			}

			spec, err := wizard.RunTemplateWizard(cmd.InOrStdin(), cmd.OutOrStdout(), initialName)
			if err != nil {
				return err
			}

			templatePath := spec.Name + ".tmpl"
			contextPath := spec.Name + ".context.yaml"
			if !newForce {
				for _, p := range []string{templatePath, contextPath} {
					if _, err := os.Stat(p); err == nil {
						return fmt.Errorf("%s already exists (use --force to overwrite)", p)
					}
				}
			}

			tmplSrc, err := wizard.GenerateTemplate(spec)
			if err != nil {
				return err
			}
			if err := os.WriteFile(templatePath, []byte(tmplSrc), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", templatePath, err)
			}
			if err := os.WriteFile(contextPath, []byte(wizard.GenerateContext(spec)), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", contextPath, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s and %s\n", templatePath, contextPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Render it with: promptloom render %s --context %s\n", templatePath, contextPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&newForce, "force", "f", false, "Overwrite existing files")
	return cmd
}
