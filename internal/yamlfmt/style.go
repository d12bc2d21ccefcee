package yamlfmt

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// StylePolicy decides the serialization style of individual scalar
// nodes based on where they sit in the document. Implementations mutate
// only the node's Style field; they perform no I/O.
type StylePolicy interface {
	// Style is called for every scalar node in the tree. path holds the
	// mapping keys from the document root down to the node; sequence
	// hops are transparent.
	Style(path []string, node *yaml.Node)
}

// ContentStylePolicy forces literal block style for strings stored
// under a content-bearing key, and for any string that already contains
// a newline. Everything else keeps the encoder's default style.
//
// Known limitation: yaml.v3 refuses literal style for strings it cannot
// represent as a block scalar (e.g. lines with trailing spaces) and
// falls back to quoted style. NormalizeContentStyle is the second line
// of defense for content fields that slip through.
type ContentStylePolicy struct {
	ContentKeys map[string]bool
}

// NewContentStylePolicy returns a policy using the default content key
// set.
func NewContentStylePolicy() *ContentStylePolicy {
	return &ContentStylePolicy{ContentKeys: DefaultContentKeys()}
}

func (p *ContentStylePolicy) Style(path []string, node *yaml.Node) {
	if node.Kind != yaml.ScalarNode || node.Tag != "!!str" {
		return
	}
	if len(path) > 0 && p.ContentKeys[path[len(path)-1]] {
		node.Style = yaml.LiteralStyle
		return
	}
	if strings.Contains(node.Value, "\n") {
		node.Style = yaml.LiteralStyle
	}
}

// Marshal serializes v to YAML with the given style policy applied.
// The value is first encoded into a node tree, the policy is applied to
// every scalar, and the tree is emitted with two-space indentation.
func Marshal(v any, policy StylePolicy) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding node tree: %w", err)
	}
	if policy != nil {
		applyPolicy(&node, nil, policy)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}
	return buf.Bytes(), nil
}

func applyPolicy(node *yaml.Node, path []string, policy StylePolicy) {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			applyPolicy(child, path, policy)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			applyPolicy(value, append(path, key.Value), policy)
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			applyPolicy(item, path, policy)
		}
	case yaml.ScalarNode:
		policy.Style(path, node)
	}
}
