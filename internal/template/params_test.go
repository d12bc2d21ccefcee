package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeParams(t *testing.T) {
	params, err := decodeParams([]any{"model", "gpt-4o", "temperature", 0.2, "max_tokens", 50})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", params.Model)
	require.NotNil(t, params.Temperature)
	assert.Equal(t, 0.2, *params.Temperature)
	assert.Equal(t, 50, params.MaxTokens)
	assert.Nil(t, params.Stream)
}

func TestDecodeParamsWeakTyping(t *testing.T) {
	params, err := decodeParams([]any{"temperature", 1, "stream", "false"})
	require.NoError(t, err)

	require.NotNil(t, params.Temperature)
	assert.Equal(t, 1.0, *params.Temperature)
	require.NotNil(t, params.Stream)
	assert.False(t, *params.Stream)
}

func TestDecodeParamsExtraKeys(t *testing.T) {
	params, err := decodeParams([]any{"top_p", 0.9, "stop", "END"})
	require.NoError(t, err)

	assert.Equal(t, 0.9, params.Extra["top_p"])
	assert.Equal(t, "END", params.Extra["stop"])
}

func TestDecodeParamsOddCount(t *testing.T) {
	_, err := decodeParams([]any{"model"})
	assert.ErrorContains(t, err, "key/value pairs")
}

func TestDecodeParamsNonStringKey(t *testing.T) {
	_, err := decodeParams([]any{42, "x"})
	assert.ErrorContains(t, err, "must be a string")
}

func TestDecodeParamsEmpty(t *testing.T) {
	params, err := decodeParams(nil)
	require.NoError(t, err)
	assert.Empty(t, params.Model)
	assert.Nil(t, params.Temperature)
}
