package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// DefaultBaseURL targets the public OpenAI API; point it elsewhere
	// for any compatible endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// APIKeyEnv is the environment variable consulted when no key is
	// given explicitly.
	APIKeyEnv = "OPENAI_API_KEY"
)

// OpenAIClient speaks the OpenAI-compatible chat-completions protocol,
// including SSE streaming.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) OpenAIOption {
	return func(c *OpenAIClient) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithAPIKey sets the bearer token explicitly.
func WithAPIKey(key string) OpenAIOption {
	return func(c *OpenAIClient) { c.apiKey = key }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) { c.httpClient = hc }
}

// NewOpenAIClient builds a client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewOpenAIClient(opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		baseURL:    DefaultBaseURL,
		apiKey:     os.Getenv(APIKeyEnv),
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wire types for the chat-completions response bodies.
type wireMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type wireChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	Delta        wireMessage `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type wireResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   *Usage       `json:"usage"`
}

// Complete performs a non-streaming call.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	req.Stream = false
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	out := &Completion{ID: wire.ID, Model: wire.Model}
	choice := wire.Choices[0]
	if choice.Message.Content != nil {
		out.Content = *choice.Message.Content
	}
	if choice.FinishReason != nil {
		out.FinishReason = *choice.FinishReason
	}
	if wire.Usage != nil {
		out.Usage = *wire.Usage
	}
	return out, nil
}

// Stream performs a streaming call, feeding each delta fragment to
// onChunk as it arrives.
func (c *OpenAIClient) Stream(ctx context.Context, req Request, onChunk ChunkFunc) (*Completion, error) {
	req.Stream = true
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &Completion{}
	var content strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var wire wireResponse
		if err := json.Unmarshal([]byte(payload), &wire); err != nil {
			return nil, fmt.Errorf("decoding stream event: %w", err)
		}
		if wire.ID != "" {
			out.ID = wire.ID
		}
		if wire.Model != "" {
			out.Model = wire.Model
		}
		if wire.Usage != nil {
			out.Usage = *wire.Usage
		}
		if len(wire.Choices) == 0 {
			continue
		}
		choice := wire.Choices[0]
		if choice.FinishReason != nil {
			out.FinishReason = *choice.FinishReason
		}
		if choice.Delta.Content != nil && *choice.Delta.Content != "" {
			content.WriteString(*choice.Delta.Content)
			if err := onChunk(*choice.Delta.Content); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}

	out.Content = content.String()
	return out, nil
}

func (c *OpenAIClient) post(ctx context.Context, req Request) (*http.Response, error) {
	payload, err := json.Marshal(req.Body())
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling api: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return resp, nil
}
