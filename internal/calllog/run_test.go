package calllog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewRunLoggerCreatesLayout(t *testing.T) {
	base := t.TempDir()

	run, err := NewRunLogger(base, "My Run")
	require.NoError(t, err)

	id := filepath.Base(run.Dir())
	assert.True(t, strings.HasPrefix(id, "run_"), "run dir %s", id)
	assert.True(t, strings.HasSuffix(id, "_My-Run"), "run dir %s", id)

	info, err := os.Stat(filepath.Join(run.Dir(), "llmcalls"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NotNil(t, run.Calls())
}

func TestNewRunLoggerWithoutName(t *testing.T) {
	base := t.TempDir()

	run, err := NewRunLogger(base, "")
	require.NoError(t, err)

	id := filepath.Base(run.Dir())
	assert.True(t, strings.HasPrefix(id, "run_"))
	assert.Equal(t, 1, strings.Count(id, "_"), "run dir %s", id)
}

func TestWriteMetadata(t *testing.T) {
	run, err := NewRunLogger(t.TempDir(), "")
	require.NoError(t, err)

	require.NoError(t, run.WriteMetadata(RunMetadata{
		Template:    "greeting",
		ContextFile: "ctx.yaml",
	}))

	data, err := os.ReadFile(filepath.Join(run.Dir(), "metadata.yaml"))
	require.NoError(t, err)

	var meta RunMetadata
	require.NoError(t, yaml.Unmarshal(data, &meta))
	assert.Equal(t, "greeting", meta.Template)
	assert.Equal(t, "ctx.yaml", meta.ContextFile)
	assert.NotEmpty(t, meta.Timestamp)
}

func TestWriteContext(t *testing.T) {
	run, err := NewRunLogger(t.TempDir(), "")
	require.NoError(t, err)

	ctx := map[string]any{"question": "why?", "audience": "beginners"}
	require.NoError(t, run.WriteContext(ctx))

	data, err := os.ReadFile(filepath.Join(run.Dir(), "context.yaml"))
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, ctx, back)
}

func TestRunLoggerCallsWriteIntoLLMCalls(t *testing.T) {
	run, err := NewRunLogger(t.TempDir(), "")
	require.NoError(t, err)

	path, err := run.Calls().LogRequest("step", map[string]any{
		"model":    "m",
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
		"stream":   false,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(run.Dir(), "llmcalls"), filepath.Dir(path))
}
