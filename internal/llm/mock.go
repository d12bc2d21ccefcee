package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockClient is an offline Client for tests and dry runs. If Respond is
// set it computes the reply from the prompt; otherwise Response is
// returned as-is.
type MockClient struct {
	Response string
	Respond  func(prompt string) string

	// ChunkSize controls how the reply is sliced when streaming.
	// Zero means 8 characters per chunk.
	ChunkSize int

	// Err, when set, is returned from every call.
	Err error
}

// NewMockClient returns a mock that echoes the prompt.
func NewMockClient() *MockClient {
	return &MockClient{
		Respond: func(prompt string) string {
			return fmt.Sprintf("[mock] %s", strings.TrimSpace(prompt))
		},
	}
}

func (m *MockClient) reply(req Request) string {
	if m.Respond != nil {
		prompt := ""
		if len(req.Messages) > 0 {
			prompt = req.Messages[len(req.Messages)-1].Content
		}
		return m.Respond(prompt)
	}
	return m.Response
}

// Complete returns the canned reply.
func (m *MockClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	content := m.reply(req)
	return &Completion{
		ID:           "mock-completion",
		Model:        req.Model,
		Content:      content,
		FinishReason: "stop",
		Usage:        estimateUsage(req, content),
	}, nil
}

// Stream slices the canned reply into chunks and feeds them to onChunk.
func (m *MockClient) Stream(ctx context.Context, req Request, onChunk ChunkFunc) (*Completion, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	content := m.reply(req)

	size := m.ChunkSize
	if size <= 0 {
		size = 8
	}
	runes := []rune(content)
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := onChunk(string(runes[i:end])); err != nil {
			return nil, err
		}
	}

	return &Completion{
		ID:           "mock-completion",
		Model:        req.Model,
		Content:      content,
		FinishReason: "stop",
		Usage:        estimateUsage(req, content),
	}, nil
}

func estimateUsage(req Request, content string) Usage {
	promptLen := 0
	for _, m := range req.Messages {
		promptLen += len(m.Content)
	}
	return EstimateUsage(promptLen, len(content))
}
