package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.Equal(t, false, body["stream"])

		fmt.Fprint(w, `{
			"id": "chatcmpl-abc",
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Hello!"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(WithBaseURL(srv.URL), WithAPIKey("test-key"))
	comp, err := client.Complete(context.Background(), Request{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "Hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-abc", comp.ID)
	assert.Equal(t, "Hello!", comp.Content)
	assert.Equal(t, "stop", comp.FinishReason)
	assert.Equal(t, 7, comp.Usage.TotalTokens)
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "x", "choices": []}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(WithBaseURL(srv.URL))
	_, err := client.Complete(context.Background(), Request{Model: "m"})
	assert.ErrorContains(t, err, "no choices")
}

func TestCompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "bad key"}}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(WithBaseURL(srv.URL))
	_, err := client.Complete(context.Background(), Request{Model: "m"})

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusUnauthorized, upstreamErr.StatusCode)
	assert.Contains(t, upstreamErr.Message, "bad key")
}

func TestStreamDeliversChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"chatcmpl-s\",\"model\":\"gpt-4o-mini\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAIClient(WithBaseURL(srv.URL))

	var chunks []string
	comp, err := client.Stream(context.Background(), Request{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "Hi"}},
	}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo"}, chunks)
	assert.Equal(t, "Hello", comp.Content)
	assert.Equal(t, "chatcmpl-s", comp.ID)
	assert.Equal(t, "stop", comp.FinishReason)
}

func TestStreamChunkCallbackErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAIClient(WithBaseURL(srv.URL))
	_, err := client.Stream(context.Background(), Request{Model: "m"}, func(string) error {
		return fmt.Errorf("sink full")
	})
	assert.ErrorContains(t, err, "sink full")
}

func TestRequestBody(t *testing.T) {
	req := Request{
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   100,
		Stream:      true,
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Extra:       map[string]any{"top_p": 0.9, "model": "ignored"},
	}
	body := req.Body()

	// Known fields win over Extra.
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, 0.9, body["top_p"])
	assert.Equal(t, 100, body["max_tokens"])
	assert.Equal(t, true, body["stream"])
}

func TestRequestBodyOmitsZeroMaxTokens(t *testing.T) {
	body := Request{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}}.Body()
	assert.NotContains(t, body, "max_tokens")
}

func TestEstimateUsage(t *testing.T) {
	u := EstimateUsage(40, 20)
	assert.Equal(t, 10, u.PromptTokens)
	assert.Equal(t, 5, u.CompletionTokens)
	assert.Equal(t, 15, u.TotalTokens)
}

func TestMockClientStream(t *testing.T) {
	mock := &MockClient{Response: "abcdefghij", ChunkSize: 4}

	var chunks []string
	comp, err := mock.Stream(context.Background(), Request{Model: "m"}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"abcd", "efgh", "ij"}, chunks)
	assert.Equal(t, "abcdefghij", comp.Content)
}

func TestMockClientEchoes(t *testing.T) {
	mock := NewMockClient()
	comp, err := mock.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "ping"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "[mock] ping", comp.Content)
}
