package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	valid := []string{"greeting", "my-prompt", "step_2", "a", "0start"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), "name %q", name)
	}

	invalid := []string{"", "With Spaces", "UPPER", "-leading", "_leading", "slash/name", "dot.name"}
	for _, name := range invalid {
		assert.Error(t, ValidateName(name), "name %q", name)
	}
}

func TestGenerateTemplateStreaming(t *testing.T) {
	spec := &TemplateSpec{
		Name:        "greeting",
		Model:       "gpt-4o-mini",
		Stream:      true,
		ContextKeys: []string{"question"},
	}
	got, err := GenerateTemplate(spec)
	require.NoError(t, err)
	assert.Equal(t, "{{llmquery .question \"model\" \"gpt-4o-mini\"}}\n", got)
}

func TestGenerateTemplateNonStreaming(t *testing.T) {
	spec := &TemplateSpec{
		Name:        "summary",
		Model:       "gpt-4o",
		Stream:      false,
		ContextKeys: []string{"text"},
	}
	got, err := GenerateTemplate(spec)
	require.NoError(t, err)
	assert.Equal(t, "{{llmquery .text \"model\" \"gpt-4o\" \"stream\" false}}\n", got)
}

func TestGenerateContext(t *testing.T) {
	spec := &TemplateSpec{ContextKeys: []string{"question", "audience"}}
	got := GenerateContext(spec)
	assert.Equal(t, "question: \"\"\naudience: \"\"\n", got)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim("a, b"))
	assert.Equal(t, []string{"one"}, splitAndTrim("  one  "))
	assert.Equal(t, []string{"x", "y"}, splitAndTrim("x,,y,"))
}
