package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/promptloom/promptloom/internal/calllog"
	"github.com/promptloom/promptloom/internal/llm"
	"github.com/promptloom/promptloom/internal/projectconfig"
	"github.com/promptloom/promptloom/internal/template"
	"github.com/promptloom/promptloom/internal/validation"
)

var (
	renderContextPath string
	renderOutPath     string
	renderLogDir      string
	renderRunName     string
	renderEngine      string
	renderSchemaPath  string
	renderNoLog       bool
	renderNoParallel  bool
	renderMaxWorkers  int
)

func newRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <template.tmpl> [template.tmpl...]",
		Short: "Render prompt templates against an LLM backend",
		Long: `Render one or more prompt templates.

Each llmquery call inside a template is sent to the configured backend
and its exchange is logged as a YAML file under the run directory.
Multiple templates share one run directory and render concurrently.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRenderE,
	}

	cmd.Flags().StringVarP(&renderContextPath, "context", "c", "", "YAML context file with template variables")
	cmd.Flags().StringVarP(&renderOutPath, "out", "o", "", "Output file (default: stdout; for multiple templates a per-template suffix is added)")
	cmd.Flags().StringVarP(&renderLogDir, "logdir", "l", "", "Base directory for run logs (default from config)")
	cmd.Flags().StringVarP(&renderRunName, "name", "n", "", "Run name appended to the run directory")
	cmd.Flags().StringVar(&renderEngine, "engine", "", "LLM engine: openai | mock (default from config)")
	cmd.Flags().StringVar(&renderSchemaPath, "schema", "", "JSON Schema to validate the context file against before rendering")
	cmd.Flags().BoolVar(&renderNoLog, "no-log", false, "Disable call logging")
	cmd.Flags().BoolVar(&renderNoParallel, "no-parallel", false, "Render templates sequentially")
	cmd.Flags().IntVar(&renderMaxWorkers, "max-concurrent", 0, "Maximum concurrent template renders (default from config)")

	return cmd
}

func runRenderE(cmd *cobra.Command, args []string) error {
	cfg, err := projectconfig.Load(filepath.Dir(args[0]))
	if err != nil {
		return err
	}

	contextData, err := loadContext(renderContextPath)
	if err != nil {
		return err
	}

	if renderSchemaPath != "" {
		if renderContextPath == "" {
			return fmt.Errorf("--schema requires --context")
		}
		issues, err := validation.ValidateContextFile(renderContextPath, renderSchemaPath)
		if err != nil {
			return err
		}
		if len(issues) > 0 {
			for _, issue := range issues {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", issue)
			}
			return &ValidationFailureError{
				Message: fmt.Sprintf("context file %s failed schema validation", renderContextPath),
			}
		}
	}

	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	var calls *calllog.CallLogger
	if !renderNoLog {
		run, err := newRunLogger(cfg, args, contextData)
		if err != nil {
			return err
		}
		calls = run.Calls()
		fmt.Fprintf(cmd.ErrOrStderr(), "Logging run to %s\n", run.Dir())
	}

	engine := template.New(client, calls, template.Defaults{
		Model:       cfg.Defaults.Model,
		Temperature: *cfg.Defaults.Temperature,
		MaxTokens:   cfg.Defaults.MaxTokens,
		Stream:      *cfg.Defaults.Stream,
	})

	if len(args) == 1 {
		out, err := engine.RenderFile(cmd.Context(), args[0], contextData)
		if err != nil {
			return err
		}
		return writeOutput(cmd, renderOutPath, out)
	}

	return renderAll(cmd, engine, cfg, args, contextData)
}

// renderAll renders multiple templates concurrently and emits results in
// argument order once everything finished.
func renderAll(cmd *cobra.Command, engine *template.Engine, cfg *projectconfig.ProjectConfig, paths []string, contextData map[string]any) error {
	workers := cfg.Render.Workers
	if renderMaxWorkers > 0 {
		workers = renderMaxWorkers
	}
	if renderNoParallel || (cfg.Render.Parallel != nil && !*cfg.Render.Parallel) {
		workers = 1
	}

	results := make([]string, len(paths))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			out, err := engine.RenderFile(ctx, path, contextData)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, path := range paths {
		name := templateName(path)
		if renderOutPath != "" {
			if err := os.WriteFile(perTemplateOut(renderOutPath, name), []byte(results[i]), 0o644); err != nil {
				return fmt.Errorf("writing output for %s: %w", name, err)
			}
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "--- %s ---\n%s\n", name, results[i])
	}
	return nil
}

func buildClient(cfg *projectconfig.ProjectConfig) (llm.Client, error) {
	engine := cfg.API.Engine
	if renderEngine != "" {
		engine = renderEngine
	}

	switch engine {
	case "mock":
		return llm.NewMockClient(), nil
	case "openai":
		return llm.NewOpenAIClient(
			llm.WithBaseURL(cfg.API.BaseURL),
			llm.WithAPIKey(os.Getenv(cfg.API.KeyEnv)),
		), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (expected openai or mock)", engine)
	}
}

func newRunLogger(cfg *projectconfig.ProjectConfig, paths []string, contextData map[string]any) (*calllog.RunLogger, error) {
	logDir := cfg.Logging.Dir
	if renderLogDir != "" {
		logDir = renderLogDir
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	name := renderRunName
	if name == "" && len(paths) == 1 {
		name = templateName(paths[0])
	}

	run, err := calllog.NewRunLogger(logDir, name)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = templateName(p)
	}
	meta := calllog.RunMetadata{
		Template:    strings.Join(names, ", "),
		ContextFile: renderContextPath,
	}
	if err := run.WriteMetadata(meta); err != nil {
		return nil, err
	}
	if contextData != nil {
		if err := run.WriteContext(contextData); err != nil {
			return nil, err
		}
	}
	return run, nil
}

func loadContext(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading context file: %w", err)
	}
	var ctx map[string]any
	if err := yaml.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("parsing context file: %w", err)
	}
	if ctx == nil {
		ctx = map[string]any{}
	}
	return ctx, nil
}

func writeOutput(cmd *cobra.Command, path, out string) error {
	if path == "" {
		fmt.Fprint(cmd.OutOrStdout(), out)
		if !strings.HasSuffix(out, "\n") {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func templateName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// perTemplateOut derives a per-template output path by inserting the
// template name before the extension, e.g. out.md -> out_greeting.md.
func perTemplateOut(base, name string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_" + name + ext
}
