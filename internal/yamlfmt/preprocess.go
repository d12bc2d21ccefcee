// Package yamlfmt steers YAML serialization of LLM call records so that
// message content fields come out in literal block style (pipe scalars)
// instead of quoted style, keeping log files human-diffable.
package yamlfmt

import "strings"

// Default tuning constants. These are tuned against yaml.v3's internal
// quoted-vs-block heuristic, which degrades for very long single-line
// strings; treat them as configuration, not invariants.
const (
	DefaultLongStringThreshold = 80
	DefaultMaxRunLength        = 200
)

// DefaultContentKeys is the set of mapping keys whose string values hold
// human-readable message text.
func DefaultContentKeys() map[string]bool {
	return map[string]bool{"content": true}
}

// Preprocessor rewrites content-bearing string values in a nested
// mapping/sequence structure so a YAML encoder is far more likely to
// choose literal block style for them. It never mutates its input.
type Preprocessor struct {
	// ContentKeys names the mapping keys whose values are message text.
	ContentKeys map[string]bool

	// LongStringThreshold is the minimum length at which long-run
	// breaking is considered at all.
	LongStringThreshold int

	// MaxRunLength bounds the longest run of non-newline characters
	// left in a content string. Runs beyond it get an injected newline.
	MaxRunLength int
}

// NewPreprocessor returns a Preprocessor with the default key set and
// thresholds.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		ContentKeys:         DefaultContentKeys(),
		LongStringThreshold: DefaultLongStringThreshold,
		MaxRunLength:        DefaultMaxRunLength,
	}
}

// Apply returns a deep copy of v in which every string stored under a
// content-bearing key ends in a newline and contains no run of
// non-newline characters longer than MaxRunLength. Non-string values and
// values under other keys pass through unchanged (recursively).
func (p *Preprocessor) Apply(v any) any {
	return p.walk(v, false)
}

func (p *Preprocessor) walk(v any, content bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = p.walk(val, p.ContentKeys[k])
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(t))
		for k, val := range t {
			key, _ := k.(string)
			out[k] = p.walk(val, p.ContentKeys[key])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			// Sequences are transparent: items under a content key
			// (e.g. multi-part content) inherit the content flag.
			out[i] = p.walk(item, content)
		}
		return out
	case string:
		if content {
			return p.rewrite(t)
		}
		return t
	default:
		return v
	}
}

// rewrite applies the two content transforms: guarantee a trailing
// newline, then break overlong runs.
func (p *Preprocessor) rewrite(s string) string {
	if s == "" {
		return s
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	if len(s) <= p.LongStringThreshold {
		return s
	}
	return p.breakLongRuns(s)
}

// breakLongRuns injects a newline into every run of non-newline
// characters longer than MaxRunLength. Nothing is removed, so the
// injected newlines are purely a formatting aid and consecutive
// non-blank lines inside the resulting block scalar remain logically
// contiguous text.
func (p *Preprocessor) breakLongRuns(s string) string {
	// Trailing "\n" is guaranteed by rewrite, so the final segment is "".
	segments := strings.Split(s, "\n")
	for i, seg := range segments {
		segments[i] = p.breakSegment(seg)
	}
	return strings.Join(segments, "\n")
}

// breakSegment splits one newline-free segment into pieces of at most
// MaxRunLength runes. Breaks land on rune boundaries, just before the
// last space in the window when one exists, so no line ends in
// whitespace (trailing spaces would push the encoder back to quoted
// style).
func (p *Preprocessor) breakSegment(seg string) string {
	runes := []rune(seg)
	if len(runes) <= p.MaxRunLength {
		return seg
	}

	var lines []string
	for len(runes) > p.MaxRunLength {
		cut := p.MaxRunLength
		for i := p.MaxRunLength; i > 0; i-- {
			if runes[i-1] == ' ' && i > 1 && runes[i-2] != ' ' {
				cut = i - 1
				break
			}
		}
		lines = append(lines, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return strings.Join(lines, "\n")
}
