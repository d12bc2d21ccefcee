// Package export renders the markdown content fields of a call log to
// HTML for reviewing exchanges outside the terminal.
package export

import (
	"bytes"
	"fmt"
	"html"
	"os"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	"github.com/promptloom/promptloom/internal/calllog"
)

// exchangeMessage is one role/content pair pulled out of a record.
type exchangeMessage struct {
	Role    string
	Content string
}

// CallLogHTML reads the call-log YAML file at path and renders its
// message content fields (which the log annotates as markdown) into a
// standalone HTML document.
func CallLogHTML(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading call log: %w", err)
	}

	var rec calllog.CallRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing call log: %w", err)
	}

	msgs := collectMessages(&rec)
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no message content in %s", path)
	}

	md := goldmark.New()
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>")
	buf.WriteString(html.EscapeString(path))
	buf.WriteString("</title></head>\n<body>\n")
	fmt.Fprintf(&buf, "<p><time>%s</time></p>\n", html.EscapeString(rec.Timestamp))

	for _, m := range msgs {
		fmt.Fprintf(&buf, "<section>\n<h2>%s</h2>\n", html.EscapeString(m.Role))
		if err := md.Convert([]byte(m.Content), &buf); err != nil {
			return nil, fmt.Errorf("rendering markdown: %w", err)
		}
		buf.WriteString("</section>\n")
	}

	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// collectMessages pulls request messages and response choice messages
// out of the record, in exchange order.
func collectMessages(rec *calllog.CallRecord) []exchangeMessage {
	var msgs []exchangeMessage

	if reqMsgs, ok := rec.Request["messages"].([]any); ok {
		for _, rm := range reqMsgs {
			if m := asMessage(rm); m != nil {
				msgs = append(msgs, *m)
			}
		}
	}

	if choices, ok := rec.Response["choices"].([]any); ok {
		for _, c := range choices {
			choice, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if m := asMessage(choice["message"]); m != nil {
				msgs = append(msgs, *m)
			}
		}
	}
	return msgs
}

func asMessage(v any) *exchangeMessage {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	content, ok := m["content"].(string)
	if !ok || content == "" {
		return nil
	}
	role, _ := m["role"].(string)
	if role == "" {
		role = "unknown"
	}
	return &exchangeMessage{Role: role, Content: content}
}
