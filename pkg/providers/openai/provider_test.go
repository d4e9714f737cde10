package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ledgerlens/internal/testutil"
	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"https://gateway.local", "https://gateway.local/v1/"},
		{"https://gateway.local/v1", "https://gateway.local/v1/"},
		{"https://gateway.local/v1/", "https://gateway.local/v1/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBaseURL(tt.in))
		})
	}
}

func TestProvider_Registered(t *testing.T) {
	assert.True(t, provider.IsRegistered(Name))
}

func TestProvider_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  resumo  "}}],
			"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`))
	}))
	defer srv.Close()

	p, err := New(provider.Config{APIKey: "sk-test", BaseURL: srv.URL}, testutil.NewTestLogger(t))
	require.NoError(t, err)

	text, err := p.Complete(context.Background(), provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: "persona"},
			{Role: provider.RoleUser, Content: "pergunta"},
		},
		MaxTokens:   4096,
		Temperature: 0.3,
		TopP:        0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, "  resumo  ", text)

	assert.Equal(t, DefaultModel, got["model"])
	assert.InDelta(t, 0.3, got["temperature"], 1e-9)
	assert.InDelta(t, 0.9, got["top_p"], 1e-9)
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestProvider_ContextLengthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"This model's maximum context length is 4097 tokens","type":"invalid_request_error","code":"context_length_exceeded"}}`))
	}))
	defer srv.Close()

	p, err := New(provider.Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), provider.ChatRequest{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "x"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrContextLength)

	var statusErr *provider.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.False(t, statusErr.Temporary())
}

func TestNew_BadOptions(t *testing.T) {
	_, err := New(provider.Config{Options: map[string]any{"nope": true}}, nil)
	require.Error(t, err)
}
