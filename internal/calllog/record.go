// Package calllog persists LLM request/response exchanges as YAML
// documents that stay valid and human-diffable at every point of a
// streamed response.
package calllog

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// CallState tracks one call's position in the logging lifecycle.
type CallState int

const (
	StateNotStarted CallState = iota
	StateRequestLogged
	StateStreaming
	StateCompleted
)

func (s CallState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRequestLogged:
		return "request_logged"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("CallState(%d)", int(s))
	}
}

// CallRecord is one logged request/response exchange. Request and
// Response mirror the API bodies as opaque mappings; Response is absent
// until the first response data arrives, and carries done: true only
// once the call is finalized.
type CallRecord struct {
	Timestamp string         `yaml:"timestamp"`
	Request   map[string]any `yaml:"request"`
	Response  map[string]any `yaml:"response,omitempty"`
}

// timestampLayout is ISO-8601 with microsecond precision and an
// explicit UTC offset.
const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Timestamp formats t for the record's timestamp field.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// fileTimestamp formats t for use inside a log filename: colons are
// replaced by dashes so names stay portable across filesystems.
func fileTimestamp(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s-%06d", t.Format("2006-01-02T15-04-05"), t.Nanosecond()/1000)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// sanitizeName replaces characters that are unsafe in file and
// directory names.
func sanitizeName(name string) string {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		s = "unnamed"
	}
	return s
}
