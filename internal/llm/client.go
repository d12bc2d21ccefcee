// Package llm talks to OpenAI-compatible chat-completions endpoints.
// It is a thin transport adapter: retry policy and logging belong to
// the caller.
package llm

import (
	"context"
	"fmt"
)

// Message is one chat message in a request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat-completions request body. Extra carries any
// additional parameters (top_p, stop, n, ...) verbatim.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Stream      bool
	Extra       map[string]any
}

// Body returns the request as the wire-format mapping, with Extra keys
// merged in (known fields win on conflict).
func (r Request) Body() map[string]any {
	body := make(map[string]any, len(r.Extra)+6)
	for k, v := range r.Extra {
		body[k] = v
	}
	msgs := make([]any, len(r.Messages))
	for i, m := range r.Messages {
		msgs[i] = map[string]any{"role": m.Role, "content": m.Content}
	}
	body["model"] = r.Model
	body["messages"] = msgs
	body["temperature"] = r.Temperature
	if r.MaxTokens > 0 {
		body["max_tokens"] = r.MaxTokens
	}
	body["stream"] = r.Stream
	return body
}

// Usage is the token accounting block of a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the distilled result of one call.
type Completion struct {
	ID           string
	Model        string
	Content      string
	FinishReason string
	Usage        Usage
}

// EstimateUsage approximates token counts at four characters per
// token, for backends that report no usage block.
func EstimateUsage(promptChars, completionChars int) Usage {
	u := Usage{
		PromptTokens:     promptChars / 4,
		CompletionTokens: completionChars / 4,
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

// ChunkFunc receives successive text fragments of a streamed response.
// Returning an error aborts the stream.
type ChunkFunc func(chunk string) error

// Client is the LLM transport boundary.
type Client interface {
	// Complete performs a non-streaming call.
	Complete(ctx context.Context, req Request) (*Completion, error)
	// Stream performs a streaming call, invoking onChunk for every
	// content fragment, and returns the final completion.
	Stream(ctx context.Context, req Request, onChunk ChunkFunc) (*Completion, error)
}

// UpstreamError is a failure reported by the API endpoint itself, as
// opposed to transport or local errors.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm api error (status %d): %s", e.StatusCode, e.Message)
}
