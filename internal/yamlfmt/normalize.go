package yamlfmt

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// markdownAnnotation is the canonical trailing comment placed on content
// key lines, padded with three spaces.
const markdownAnnotation = "   # markdown"

var (
	// contentKeyLine matches an indented content key whose value starts
	// on the same line. Group 1: indentation, group 2: optional sequence
	// dash, group 3: the raw value part.
	contentKeyLine = regexp.MustCompile(`^(\s*)(- )?content:(.*)$`)

	// blockIndicator matches a literal block header: pipe plus optional
	// indentation and chomping indicators in either order.
	blockIndicator = regexp.MustCompile(`^\|(?:[0-9][+-]?|[+-][0-9]?)?$`)

	// otherBlockKey matches any other key line that opens a block
	// scalar, so the body can be skipped rather than rescanned.
	otherBlockKey = regexp.MustCompile(`^(\s*)(- )?[^\s#][^:]*:\s+[|>][0-9+-]{0,2}\s*(?:#.*)?$`)
)

// NormalizeContentStyle repairs the serialized text of one complete
// YAML document so every content field whose value starts on its key
// line carries the canonical literal block header (`|` plus the
// markdown annotation). Lines inside block scalar bodies and lines that
// are not content key lines pass through byte for byte. The function is
// idempotent: normalizing already-normalized text returns it unchanged.
//
// This is deliberately a line-oriented repair, not a re-parse: reparsing
// would disturb formatting decisions already made for unrelated fields.
func NormalizeContentStyle(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	skipCol := -1 // column of the key that opened a block scalar body
	for _, line := range lines {
		if skipCol >= 0 {
			if strings.TrimSpace(line) == "" || indentWidth(line) > skipCol {
				out = append(out, line)
				continue
			}
			skipCol = -1
		}

		m := contentKeyLine.FindStringSubmatch(line)
		if m == nil {
			if bm := otherBlockKey.FindStringSubmatch(line); bm != nil {
				skipCol = len(bm[1]) + len(bm[2])
			}
			out = append(out, line)
			continue
		}

		indent, dash, rest := m[1], m[2], m[3]
		keyCol := len(indent) + len(dash)
		value := strings.TrimSpace(rest)

		switch {
		case value == "":
			// Key with no same-line value: nothing to repair.
			out = append(out, line)

		case strings.HasPrefix(value, "|"):
			header, comment, _ := strings.Cut(value, "#")
			header = strings.TrimSpace(header)
			if !blockIndicator.MatchString(header) {
				out = append(out, line)
				continue
			}
			if strings.TrimSpace(comment) == "markdown" {
				out = append(out, line) // already canonical
			} else {
				out = append(out, indent+dash+"content: "+header+markdownAnnotation)
			}
			skipCol = keyCol

		case isNonStringScalar(value):
			// Nulls and other non-string scalars (absent content on tool
			// calls) are not text; leave them as-is.
			out = append(out, line)

		default:
			// Quoted or plain style: swap in the block header and carry
			// the same-line value down into the block body, leaving any
			// continuation lines untouched.
			body, ok := dequote(value)
			if !ok {
				// A quoted scalar continuing on later lines cannot be
				// repaired line by line; leave it for the parser.
				out = append(out, line)
				continue
			}
			out = append(out, indent+dash+"content: |"+markdownAnnotation)
			bodyIndent := strings.Repeat(" ", keyCol+2)
			for _, bl := range strings.Split(strings.TrimSuffix(body, "\n"), "\n") {
				out = append(out, bodyIndent+bl)
			}
			skipCol = keyCol
		}
	}

	return strings.Join(out, "\n")
}

// NormalizeFile applies NormalizeContentStyle to the file at path,
// rewriting it only when the repair changed something.
func NormalizeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	fixed := NormalizeContentStyle(string(data))
	if fixed == string(data) {
		return nil
	}
	if err := os.WriteFile(path, []byte(fixed), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// isNonStringScalar reports whether a plain value is one of the YAML
// scalars that must not be rewritten as text.
func isNonStringScalar(value string) bool {
	switch value {
	case "null", "Null", "NULL", "~", "true", "false", "True", "False":
		return true
	}
	return false
}

// indentWidth returns the number of leading spaces on line.
func indentWidth(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

// dequote recovers the scalar text from a single-line quoted or plain
// value. It reports false when the value cannot be safely decoded on
// this line alone (e.g. an unterminated quote).
func dequote(value string) (string, bool) {
	if len(value) >= 2 && value[0] == '"' {
		if value[len(value)-1] != '"' {
			return "", false
		}
		s, err := strconv.Unquote(value)
		if err != nil {
			return "", false
		}
		return s, true
	}
	if len(value) >= 2 && value[0] == '\'' {
		if value[len(value)-1] != '\'' {
			return "", false
		}
		inner := value[1 : len(value)-1]
		return strings.ReplaceAll(inner, "''", "'"), true
	}
	if strings.HasPrefix(value, "\"") || strings.HasPrefix(value, "'") {
		return "", false
	}
	return value, true
}
