package template

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// QueryParams are the per-query options accepted by llmquery. Unknown
// keys are carried through to the API request verbatim.
type QueryParams struct {
	Model       string   `mapstructure:"model"`
	Temperature *float64 `mapstructure:"temperature"`
	MaxTokens   int      `mapstructure:"max_tokens"`
	Stream      *bool    `mapstructure:"stream"`

	Extra map[string]any `mapstructure:",remain"`
}

// decodeParams turns the alternating key/value arguments of an llmquery
// call into QueryParams. Values are coerced weakly so templates can
// write `"temperature" 1` without caring about numeric types.
func decodeParams(kv []any) (*QueryParams, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("llmquery options must be key/value pairs, got %d arguments", len(kv))
	}

	raw := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("llmquery option name must be a string, got %T", kv[i])
		}
		raw[key] = kv[i+1]
	}

	var params QueryParams
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &params,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("building option decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding llmquery options: %w", err)
	}
	return &params, nil
}
