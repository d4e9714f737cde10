package anthropic

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

func TestProvider_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"Resumo"}],
			"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":1}}`))
	}))
	defer srv.Close()

	p, err := New(provider.Config{APIKey: "key-test", BaseURL: srv.URL}, testutil.NewTestLogger(t))
	require.NoError(t, err)

	text, err := p.Complete(context.Background(), provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: "persona"},
			{Role: provider.RoleUser, Content: "pergunta"},
		},
		Temperature: 0.3,
		TopP:        0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, "Resumo", text)

	assert.Equal(t, DefaultModel, got["model"])
	assert.EqualValues(t, defaultMaxTokens, got["max_tokens"])
	assert.InDelta(t, 0.9, got["top_p"], 1e-9)

	system, ok := got["system"].([]any)
	require.True(t, ok, "system prompt must be sent as a top-level field")
	assert.Len(t, system, 1)

	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 1, "system message must not be sent as a turn")
}

func TestProvider_PromptTooLong(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 250000 tokens > 200000 maximum"}}`))
	}))
	defer srv.Close()

	p, err := New(provider.Config{APIKey: "key-test", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), provider.ChatRequest{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "x"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrContextLength)

	var statusErr *provider.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}

func TestProvider_Registered(t *testing.T) {
	assert.True(t, provider.IsRegistered(Name))
}
