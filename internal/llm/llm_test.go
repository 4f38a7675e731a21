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

type planReply struct {
	Plan []struct {
		Name string  `json:"name"`
		Peak float64 `json:"planned_peak_hours_weekday"`
	} `json:"plan"`
	Explanation string `json:"explanation"`
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "plain object",
			raw:  `{"plan":[{"name":"TV","planned_peak_hours_weekday":1.5}],"explanation":"ok"}`,
			want: "TV",
		},
		{
			name: "code fence with prose",
			raw:  "Here is the plan:\n```json\n{\"plan\":[{\"name\":\"Fan\"}],\"explanation\":\"a {brace} in text\"}\n```\nThanks!",
			want: "Fan",
		},
		{
			name: "nested braces and escaped quotes",
			raw:  `sure {"plan":[{"name":"Lamp \"desk\""}],"explanation":"x"} trailing {}`,
			want: `Lamp "desk"`,
		},
		{name: "no object", raw: "I cannot help with that", wantErr: true},
		{name: "unbalanced", raw: `{"plan":[`, wantErr: true},
		{name: "wrong shape", raw: `{"plan":"nope"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON[planReply](tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidOutput)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, got.Plan)
			assert.Equal(t, tt.want, got.Plan[0].Name)
		})
	}
}

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAI(Config{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
}

func TestOpenAI_Complete(t *testing.T) {
	client := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])
		format, _ := req["response_format"].(map[string]any)
		assert.Equal(t, "json_object", format["type"])

		messages, _ := req["messages"].([]any)
		require.Len(t, messages, 2)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": `{"plan":[]}`}}},
		})
	})

	out, err := client.Complete(context.Background(), "system", "user", true)
	require.NoError(t, err)
	assert.Equal(t, `{"plan":[]}`, out)
}

func TestOpenAI_Unauthorized(t *testing.T) {
	client := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	})

	_, err := client.Complete(context.Background(), "s", "u", false)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, IsCredentialError(err))
}

func TestOpenAI_ServerError(t *testing.T) {
	client := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	})

	_, err := client.Complete(context.Background(), "s", "u", false)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, IsCredentialError(err))
}

func TestOpenAI_MissingKey(t *testing.T) {
	client := NewOpenAI(Config{Model: "gpt-4o-mini"})
	_, err := client.Complete(context.Background(), "s", "u", false)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestGemini_MissingKey(t *testing.T) {
	g, err := NewGemini(context.Background(), Config{Model: DefaultGeminiModel})
	require.NoError(t, err)
	_, err = g.Complete(context.Background(), "s", "u", true)
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.NoError(t, g.Close())
}

func TestNew(t *testing.T) {
	c, err := New(context.Background(), Config{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New(context.Background(), Config{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	require.IsType(t, &OpenAI{}, c)
	assert.Equal(t, DefaultOpenAIModel, c.(*OpenAI).cfg.Model)

	_, err = New(context.Background(), Config{Provider: "mystery"})
	assert.Error(t, err)
}
