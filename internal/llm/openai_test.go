package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAITestServer(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOpenAIClient(Config{
		Provider: "openai",
		APIKey:   "test-key",
		BaseURL:  srv.URL,
		Model:    "test-model",
	})
}

func TestOpenAICompleteSuccess(t *testing.T) {
	var gotReq chatRequest
	client := openAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "  the answer  "}},
			},
		})
	})

	got, err := client.Complete(context.Background(), Request{
		System:      "be terse",
		Prompt:      "what is auth?",
		Temperature: 0.1,
		MaxTokens:   256,
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", got)

	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, 0.1, gotReq.Temperature)
	assert.Equal(t, 256, gotReq.MaxTokens)
}

func TestOpenAICompleteRetriesOn429(t *testing.T) {
	attempts := 0
	client := openAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	})

	got, err := client.Complete(context.Background(), Request{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, attempts)
}

func TestOpenAICompleteHardFailure(t *testing.T) {
	client := openAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.Complete(context.Background(), Request{Prompt: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestOpenAICompleteRequiresKey(t *testing.T) {
	client := NewOpenAIClient(Config{Provider: "openai"})
	_, err := client.Complete(context.Background(), Request{Prompt: "q"})
	assert.Error(t, err)
}

func TestNewUnsupportedProvider(t *testing.T) {
	_, err := New(Config{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}
