// Package template renders prompt templates whose inline llmquery
// calls are executed against an LLM backend and logged per exchange.
package template

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/promptloom/promptloom/internal/calllog"
	"github.com/promptloom/promptloom/internal/llm"
)

// Defaults are the query parameters used when a template does not
// override them.
type Defaults struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// Engine executes prompt templates. Template syntax is Go
// text/template with missingkey=error; the llmquery function sends its
// prompt to the LLM and evaluates to the response text.
type Engine struct {
	client   llm.Client
	calls    *calllog.CallLogger // nil disables call logging
	defaults Defaults
}

// New builds an engine. calls may be nil when no log directory was
// requested.
func New(client llm.Client, calls *calllog.CallLogger, defaults Defaults) *Engine {
	return &Engine{client: client, calls: calls, defaults: defaults}
}

// RenderFile renders the template at path with the given context data.
// The template's base name (without extension) becomes the call-log
// template name.
func (e *Engine) RenderFile(ctx context.Context, path string, data map[string]any) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading template: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return e.Render(ctx, name, string(src), data)
}

// Render renders template source under the given name.
func (e *Engine) Render(ctx context.Context, name, src string, data map[string]any) (string, error) {
	t, err := template.New(name).
		Option("missingkey=error").
		Funcs(e.funcMap(ctx, name)).
		Parse(src)
	if err != nil {
		return "", fmt.Errorf("parsing template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering template %s: %w", name, err)
	}
	return buf.String(), nil
}

func (e *Engine) funcMap(ctx context.Context, name string) template.FuncMap {
	return template.FuncMap{
		"llmquery": func(prompt string, kv ...any) (string, error) {
			params, err := decodeParams(kv)
			if err != nil {
				return "", err
			}
			return e.query(ctx, name, prompt, params)
		},
		"dict": func(kv ...any) (map[string]any, error) {
			if len(kv)%2 != 0 {
				return nil, fmt.Errorf("dict requires key/value pairs")
			}
			m := make(map[string]any, len(kv)/2)
			for i := 0; i < len(kv); i += 2 {
				key, ok := kv[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict key must be a string, got %T", kv[i])
				}
				m[key] = kv[i+1]
			}
			return m, nil
		},
	}
}

// query executes one llmquery call: it builds the request, drives the
// backend, and logs the exchange through the call logger.
func (e *Engine) query(ctx context.Context, name, prompt string, params *QueryParams) (string, error) {
	req := e.buildRequest(prompt, params)
	slog.Debug("llm query", "template", name, "model", req.Model, "stream", req.Stream)

	if e.calls == nil {
		return e.execute(ctx, req)
	}

	if req.Stream {
		return e.queryStreaming(ctx, name, req)
	}
	return e.queryOneShot(ctx, name, req)
}

func (e *Engine) buildRequest(prompt string, params *QueryParams) llm.Request {
	req := llm.Request{
		Model:       e.defaults.Model,
		Temperature: e.defaults.Temperature,
		MaxTokens:   e.defaults.MaxTokens,
		Stream:      e.defaults.Stream,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Extra:       params.Extra,
	}
	if params.Model != "" {
		req.Model = params.Model
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = params.MaxTokens
	}
	if params.Stream != nil {
		req.Stream = *params.Stream
	}
	return req
}

// execute runs the call without logging.
func (e *Engine) execute(ctx context.Context, req llm.Request) (string, error) {
	var comp *llm.Completion
	var err error
	if req.Stream {
		comp, err = e.client.Stream(ctx, req, func(string) error { return nil })
	} else {
		comp, err = e.client.Complete(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("llm query: %w", err)
	}
	return comp.Content, nil
}

// queryStreaming logs the request up front, feeds every chunk through
// the call logger so the file stays current, and finalizes the record
// with the completion metadata.
func (e *Engine) queryStreaming(ctx context.Context, name string, req llm.Request) (string, error) {
	if _, err := e.calls.LogRequest(name, req.Body(), nil); err != nil {
		return "", fmt.Errorf("logging request: %w", err)
	}

	comp, err := e.client.Stream(ctx, req, func(chunk string) error {
		return e.calls.AppendChunk(name, chunk)
	})
	if err != nil {
		// The log file keeps its last valid state; the missing
		// done flag marks the call as interrupted.
		return "", fmt.Errorf("llm query: %w", err)
	}

	if err := e.calls.Complete(name, completionData(req, comp)); err != nil {
		return "", fmt.Errorf("finalizing call log: %w", err)
	}
	return comp.Content, nil
}

func (e *Engine) queryOneShot(ctx context.Context, name string, req llm.Request) (string, error) {
	comp, err := e.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm query: %w", err)
	}
	if _, err := e.calls.LogRequest(name, req.Body(), completionData(req, comp)); err != nil {
		return "", fmt.Errorf("logging request: %w", err)
	}
	return comp.Content, nil
}

// completionData shapes a Completion into the response mapping stored
// in the call log, mirroring the chat-completions body.
func completionData(req llm.Request, comp *llm.Completion) map[string]any {
	usage := comp.Usage
	if usage.TotalTokens == 0 {
		promptLen := 0
		for _, m := range req.Messages {
			promptLen += len(m.Content)
		}
		usage = llm.EstimateUsage(promptLen, len(comp.Content))
	}

	finish := comp.FinishReason
	if finish == "" {
		finish = "stop"
	}

	resp := map[string]any{
		"model": req.Model,
		"choices": []any{
			map[string]any{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": comp.Content,
				},
				"finish_reason": finish,
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     usage.PromptTokens,
			"completion_tokens": usage.CompletionTokens,
			"total_tokens":      usage.TotalTokens,
		},
	}
	if comp.ID != "" {
		resp["id"] = comp.ID
	}
	if comp.Model != "" {
		resp["model"] = comp.Model
	}
	return resp
}
