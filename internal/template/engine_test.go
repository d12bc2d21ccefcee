package template

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/promptloom/promptloom/internal/calllog"
	"github.com/promptloom/promptloom/internal/llm"
)

func testDefaults() Defaults {
	return Defaults{
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   1024,
		Stream:      true,
	}
}

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	calls, err := calllog.NewCallLogger(dir)
	require.NoError(t, err)
	return New(llm.NewMockClient(), calls, testDefaults()), dir
}

func callLogFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.log.yaml"))
	require.NoError(t, err)
	return matches
}

func readLog(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, yaml.Unmarshal(data, &rec))
	return rec
}

func TestRenderPlainTemplate(t *testing.T) {
	engine, _ := newTestEngine(t)

	out, err := engine.Render(context.Background(), "plain", "Hello {{ .name }}!", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada!", out)
}

func TestRenderMissingKeyFails(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Render(context.Background(), "broken", "{{ .missing }}", map[string]any{})
	assert.Error(t, err)
}

func TestRenderStreamingQueryLogsCall(t *testing.T) {
	engine, dir := newTestEngine(t)

	out, err := engine.Render(context.Background(), "ask",
		`{{ llmquery .question }}`,
		map[string]any{"question": "What is Go?"})
	require.NoError(t, err)
	assert.Equal(t, "[mock] What is Go?", out)

	files := callLogFiles(t, dir)
	require.Len(t, files, 1)
	assert.Contains(t, filepath.Base(files[0]), "ask_")

	rec := readLog(t, files[0])
	req := rec["request"].(map[string]any)
	assert.Equal(t, "gpt-4o-mini", req["model"])
	assert.Equal(t, true, req["stream"])

	resp := rec["response"].(map[string]any)
	assert.Equal(t, true, resp["done"])
	msg := resp["choices"].([]any)[0].(map[string]any)["message"].(map[string]any)
	assert.Equal(t, "[mock] What is Go?\n", msg["content"])
	usage := resp["usage"].(map[string]any)
	assert.NotZero(t, usage["total_tokens"])
}

func TestRenderOneShotQueryLogsCall(t *testing.T) {
	engine, dir := newTestEngine(t)

	out, err := engine.Render(context.Background(), "sync",
		`{{ llmquery .question "stream" false }}`,
		map[string]any{"question": "Short one"})
	require.NoError(t, err)
	assert.Equal(t, "[mock] Short one", out)

	files := callLogFiles(t, dir)
	require.Len(t, files, 1)

	rec := readLog(t, files[0])
	req := rec["request"].(map[string]any)
	assert.Equal(t, false, req["stream"])

	resp := rec["response"].(map[string]any)
	assert.NotContains(t, resp, "done")
	choice := resp["choices"].([]any)[0].(map[string]any)
	assert.Equal(t, "stop", choice["finish_reason"])
}

func TestRenderQueryParamOverrides(t *testing.T) {
	engine, dir := newTestEngine(t)

	_, err := engine.Render(context.Background(), "tuned",
		`{{ llmquery .q "model" "gpt-4o" "temperature" 0.1 "max_tokens" 64 }}`,
		map[string]any{"q": "x"})
	require.NoError(t, err)

	rec := readLog(t, callLogFiles(t, dir)[0])
	req := rec["request"].(map[string]any)
	assert.Equal(t, "gpt-4o", req["model"])
	assert.Equal(t, 0.1, req["temperature"])
	assert.Equal(t, 64, req["max_tokens"])
}

func TestRenderMultipleQueriesGetSeparateLogs(t *testing.T) {
	engine, dir := newTestEngine(t)

	_, err := engine.Render(context.Background(), "chain",
		`{{ llmquery .a }} then {{ llmquery .b }}`,
		map[string]any{"a": "one", "b": "two"})
	require.NoError(t, err)

	assert.Len(t, callLogFiles(t, dir), 2)
}

func TestRenderWithoutLoggerSkipsLogs(t *testing.T) {
	engine := New(llm.NewMockClient(), nil, testDefaults())

	out, err := engine.Render(context.Background(), "quiet",
		`{{ llmquery .q }}`, map[string]any{"q": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "[mock] hi", out)
}

func TestRenderPropagatesClientError(t *testing.T) {
	dir := t.TempDir()
	calls, err := calllog.NewCallLogger(dir)
	require.NoError(t, err)
	engine := New(&llm.MockClient{Err: &llm.UpstreamError{StatusCode: 429, Message: "slow down"}}, calls, testDefaults())

	_, err = engine.Render(context.Background(), "throttled",
		`{{ llmquery .q }}`, map[string]any{"q": "hi"})
	require.Error(t, err)

	var upstreamErr *llm.UpstreamError
	assert.ErrorAs(t, err, &upstreamErr)

	// The request was logged before the failure; the record has no done
	// marker, flagging the call as interrupted.
	files := callLogFiles(t, dir)
	require.Len(t, files, 1)
	rec := readLog(t, files[0])
	assert.NotContains(t, rec, "response")
}

func TestRenderDictFunction(t *testing.T) {
	engine, _ := newTestEngine(t)

	out, err := engine.Render(context.Background(), "d",
		`{{ $m := dict "k" "v" }}{{ $m.k }}`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "v", out)
}

func TestRenderFileUsesBaseName(t *testing.T) {
	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "greeting.tmpl")
	require.NoError(t, os.WriteFile(tmplPath, []byte(`{{ llmquery .q }}`), 0o644))

	logDir := t.TempDir()
	calls, err := calllog.NewCallLogger(logDir)
	require.NoError(t, err)
	engine := New(llm.NewMockClient(), calls, testDefaults())

	_, err = engine.RenderFile(context.Background(), tmplPath, map[string]any{"q": "hello"})
	require.NoError(t, err)

	files := callLogFiles(t, logDir)
	require.Len(t, files, 1)
	assert.Contains(t, filepath.Base(files[0]), "greeting_")
}
