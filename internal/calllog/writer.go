package calllog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/promptloom/promptloom/internal/yamlfmt"
)

// ErrUnknownCall is returned when a chunk or completion arrives for a
// template with no in-flight streaming call.
var ErrUnknownCall = errors.New("no active call for template")

// CallLogger writes one YAML file per LLM exchange into a target
// directory. For streaming calls every chunk triggers a rewrite of the
// whole accumulated record, so the file on disk is a complete,
// independently parseable document between any two chunks.
//
// All per-template counters and in-flight buffers are instance state;
// a CallLogger is safe for use from concurrent calls.
type CallLogger struct {
	dir    string
	pre    *yamlfmt.Preprocessor
	policy yamlfmt.StylePolicy
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]int
	active   map[string]*activeCall
}

// activeCall is the transient state of one in-flight streaming call.
// record is the writer's own ground truth, used to rebuild the file if
// the on-disk copy turns out to be unparseable.
type activeCall struct {
	path   string
	state  CallState
	record CallRecord
	buffer strings.Builder
}

// CallLoggerOption configures a CallLogger.
type CallLoggerOption func(*CallLogger)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) CallLoggerOption {
	return func(l *CallLogger) { l.now = now }
}

// WithPreprocessor overrides the content preprocessor.
func WithPreprocessor(pre *yamlfmt.Preprocessor) CallLoggerOption {
	return func(l *CallLogger) { l.pre = pre }
}

// NewCallLogger returns a logger writing into dir. A missing or
// unwritable directory is a construction-time error, not a per-call
// condition.
func NewCallLogger(dir string, opts ...CallLoggerOption) (*CallLogger, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("call log directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("call log directory: %s is not a directory", dir)
	}

	l := &CallLogger{
		dir:      dir,
		pre:      yamlfmt.NewPreprocessor(),
		policy:   yamlfmt.NewContentStylePolicy(),
		now:      time.Now,
		counters: make(map[string]int),
		active:   make(map[string]*activeCall),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LogRequest persists a new call record and returns its file path.
//
// When response is non-nil the call is non-streaming: the full record
// is written atomically in one step and nothing further is expected.
// When response is nil and the request asks for streaming (the default
// when no stream key is present), the call is registered as in-flight
// and subsequent AppendChunk/Complete calls update the same file.
func (l *CallLogger) LogRequest(templateName string, request, response map[string]any) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	counter := l.counters[templateName]
	l.counters[templateName]++

	name := fmt.Sprintf("%s_%s_%d.log.yaml", sanitizeName(templateName), fileTimestamp(l.now()), counter)
	path := filepath.Join(l.dir, name)

	rec := CallRecord{
		Timestamp: Timestamp(l.now()),
		Request:   request,
	}

	switch {
	case response != nil:
		rec.Response = response
	case isStreaming(request):
		l.active[templateName] = &activeCall{
			path:   path,
			state:  StateRequestLogged,
			record: rec,
		}
	}

	if err := l.writeRecord(path, rec); err != nil {
		delete(l.active, templateName)
		return "", err
	}
	return path, nil
}

// AppendChunk merges one streamed response fragment into the call's
// accumulated content and rewrites the log file as a complete document.
func (l *CallLogger) AppendChunk(templateName, chunk string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	call, ok := l.active[templateName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCall, templateName)
	}

	call.buffer.WriteString(chunk)
	call.state = StateStreaming

	rec := l.reload(call)
	setMessageContent(&rec, call.buffer.String())
	call.record = rec

	return l.writeRecord(call.path, rec)
}

// Complete finalizes a streaming call: the completion metadata becomes
// the response body, the accumulated content replaces the message text
// (unless the completion explicitly carries a null content, as for tool
// calls), done: true is set, and the in-memory buffer is discarded.
func (l *CallLogger) Complete(templateName string, completion map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	call, ok := l.active[templateName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCall, templateName)
	}
	defer delete(l.active, templateName)

	rec := l.reload(call)

	resp := deepCopyMap(completion)
	if resp == nil {
		resp = make(map[string]any)
	}
	delete(resp, "content")
	rec.Response = resp
	setMessageContent(&rec, call.buffer.String())
	resp["done"] = true

	call.state = StateCompleted
	call.record = rec

	return l.writeRecord(call.path, rec)
}

// State reports the lifecycle state of the in-flight call for
// templateName, or StateNotStarted when none exists.
func (l *CallLogger) State(templateName string) CallState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if call, ok := l.active[templateName]; ok {
		return call.state
	}
	return StateNotStarted
}

// ActivePath returns the target file of the in-flight call for
// templateName, if any.
func (l *CallLogger) ActivePath(templateName string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	call, ok := l.active[templateName]
	if !ok {
		return "", false
	}
	return call.path, true
}

// reload reads the call's file back so fields written by earlier
// updates survive the rewrite. If the on-disk copy no longer parses
// (external tampering), the writer's in-memory record is ground truth
// and the file is simply rebuilt from it.
func (l *CallLogger) reload(call *activeCall) CallRecord {
	data, err := os.ReadFile(call.path)
	if err == nil {
		var rec CallRecord
		if yaml.Unmarshal(data, &rec) == nil && rec.Timestamp != "" {
			return rec
		}
	}
	slog.Warn("call log unreadable, rebuilding from memory", "path", call.path)
	return call.record
}

func (l *CallLogger) writeRecord(path string, rec CallRecord) error {
	out := CallRecord{
		Timestamp: rec.Timestamp,
		Request:   applyPre(l.pre, rec.Request),
		Response:  applyPre(l.pre, rec.Response),
	}

	data, err := yamlfmt.Marshal(out, l.policy)
	if err != nil {
		return fmt.Errorf("serializing call record: %w", err)
	}
	fixed := yamlfmt.NormalizeContentStyle(string(data))

	if err := os.WriteFile(path, []byte(fixed), 0o644); err != nil {
		return fmt.Errorf("writing call record: %w", err)
	}
	return nil
}

func applyPre(pre *yamlfmt.Preprocessor, m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := pre.Apply(m).(map[string]any)
	return out
}

// isStreaming mirrors the request default: streaming unless the body
// explicitly says stream: false.
func isStreaming(request map[string]any) bool {
	if v, ok := request["stream"].(bool); ok {
		return v
	}
	return true
}

// setMessageContent places content at response.choices[0].message.content,
// creating the surrounding structure when absent. A message whose
// content is explicitly null is left alone.
func setMessageContent(rec *CallRecord, content string) {
	if rec.Response == nil {
		rec.Response = make(map[string]any)
	}

	choices, _ := rec.Response["choices"].([]any)
	if len(choices) == 0 {
		rec.Response["choices"] = []any{
			map[string]any{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		}
		return
	}

	first, ok := choices[0].(map[string]any)
	if !ok {
		return
	}
	msg, ok := first["message"].(map[string]any)
	if !ok {
		msg = map[string]any{"role": "assistant"}
		first["message"] = msg
	}
	if v, present := msg["content"]; present && v == nil {
		return // explicit null (tool calls): do not overwrite
	}
	msg["content"] = content
}

// deepCopyMap copies nested maps and slices so completion metadata
// handed in by the caller is never mutated.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
