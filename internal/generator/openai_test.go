package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{APIKey: "  "})
	require.Error(t, err)
}

func TestOpenAIComplete(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"read"}}]}`))
	}))
	defer srv.Close()

	src, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	reply, err := src.Complete(context.Background(), "classify this")
	require.NoError(t, err)
	assert.Equal(t, Message{Role: "assistant", Content: "read"}, reply)

	assert.Equal(t, defaultModel, got.Model)
	assert.Zero(t, got.Temperature)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "classify this", got.Messages[0].Content)
}

func TestOpenAICompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		errMsg string
	}{
		{"non-2xx", http.StatusUnauthorized, `{"error":"bad key"}`, "status=401"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"bad json", http.StatusOK, `{`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			src, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = src.Complete(context.Background(), "x")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
