package calllog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RunMetadata is the run-level record written to metadata.yaml.
type RunMetadata struct {
	Template    string `yaml:"template"`
	ContextFile string `yaml:"context_file,omitempty"`
	Timestamp   string `yaml:"timestamp"`
}

// RunLogger groups the call logs of one rendering run under a single
// timestamped directory:
//
//	<base>/run_<timestamp>[_<name>]/
//	  metadata.yaml
//	  context.yaml
//	  llmcalls/
type RunLogger struct {
	dir   string
	calls *CallLogger
}

// NewRunLogger creates the run directory under baseDir and the
// llmcalls subdirectory inside it. name, when non-empty, is sanitized
// and appended to the run id.
func NewRunLogger(baseDir, name string, opts ...CallLoggerOption) (*RunLogger, error) {
	runID := "run_" + fileTimestamp(time.Now())
	if name != "" {
		runID += "_" + sanitizeName(name)
	}

	dir := filepath.Join(baseDir, runID)
	callDir := filepath.Join(dir, "llmcalls")
	if err := os.MkdirAll(callDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	calls, err := NewCallLogger(callDir, opts...)
	if err != nil {
		return nil, err
	}

	return &RunLogger{dir: dir, calls: calls}, nil
}

// Dir returns the run directory path.
func (r *RunLogger) Dir() string { return r.dir }

// Calls returns the run-scoped call logger.
func (r *RunLogger) Calls() *CallLogger { return r.calls }

// WriteMetadata persists the run-level metadata.yaml.
func (r *RunLogger) WriteMetadata(meta RunMetadata) error {
	if meta.Timestamp == "" {
		meta.Timestamp = Timestamp(time.Now())
	}
	return r.writeYAML("metadata.yaml", meta)
}

// WriteContext persists a full copy of the rendering context.
func (r *RunLogger) WriteContext(context any) error {
	return r.writeYAML("context.yaml", context)
}

func (r *RunLogger) writeYAML(name string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
