// Package wizard collects the fields for a new prompt template through
// an interactive form and renders the scaffold files.
package wizard

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// TemplateSpec holds all fields collected during the interactive
// wizard.
type TemplateSpec struct {
	Name        string
	Model       string
	Stream      bool
	ContextKeys []string
}

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidateName checks that a template name is usable in file names.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if !validName.MatchString(name) {
		return fmt.Errorf("name must be lowercase letters, digits, '-' or '_'")
	}
	return nil
}

const promptTemplate = `{{"{{"}}llmquery .{{ index .ContextKeys 0 }} "model" "{{ .Model }}"{{ if not .Stream }} "stream" false{{ end }}{{"}}"}}
`

// RunTemplateWizard runs an interactive huh form to collect template
// metadata. If initialName is non-empty, it pre-populates the name
// field.
func RunTemplateWizard(in io.Reader, out io.Writer, initialName string) (*TemplateSpec, error) {
	var (
		name           = initialName
		model          = "gpt-4o-mini"
		stream         = true
		contextKeysRaw string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Template name").
				Description("Used for the scaffold file names and call logs").
				Placeholder("my-prompt").
				Value(&name).
				Validate(func(s string) error {
					return ValidateName(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Model").
				Description("Default model for llmquery calls").
				Placeholder("gpt-4o-mini").
				Value(&model),
			huh.NewConfirm().
				Title("Stream responses?").
				Description("Streaming keeps the call log current chunk by chunk").
				Value(&stream),
			huh.NewInput().
				Title("Context keys").
				Description("Comma-separated variables the template expects").
				Placeholder("question, audience").
				Value(&contextKeysRaw),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	spec := &TemplateSpec{
		Name:        strings.TrimSpace(name),
		Model:       strings.TrimSpace(model),
		Stream:      stream,
		ContextKeys: splitAndTrim(contextKeysRaw),
	}
	if len(spec.ContextKeys) == 0 {
		spec.ContextKeys = []string{"question"}
	}
	return spec, nil
}

// GenerateTemplate renders the scaffold .tmpl source for the spec.
func GenerateTemplate(spec *TemplateSpec) (string, error) {
	tmpl, err := template.New("scaffold").Parse(promptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse scaffold template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, spec); err != nil {
		return "", fmt.Errorf("failed to render scaffold template: %w", err)
	}
	return buf.String(), nil
}

// GenerateContext renders the matching starter context YAML.
func GenerateContext(spec *TemplateSpec) string {
	var buf strings.Builder
	for _, key := range spec.ContextKeys {
		fmt.Fprintf(&buf, "%s: \"\"\n", key)
	}
	return buf.String()
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
