package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defrec/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewOpenAIClient(config.ServiceConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Model:      "test-model",
		Timeout:    "5s",
		MaxRetries: 2,
	})
	require.NoError(t, err)
	return c
}

func completionBody(content string) []byte {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return b
}

func TestCompleteJSONDecodesObject(t *testing.T) {
	var gotReq chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write(completionBody(`{"market_segment": "Air Platforms"}`))
	})

	obj, err := c.CompleteJSON(context.Background(), "", "classify this")
	require.NoError(t, err)
	assert.Equal(t, "Air Platforms", obj["market_segment"])

	assert.Equal(t, "test-model", gotReq.Model)
	assert.Zero(t, gotReq.Temperature)
	require.NotNil(t, gotReq.ResponseFormat)
	assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
}

func TestCompleteJSONSalvagesWrappedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionBody("Here is the result:\n```json\n{\"supplier_name\": \"Boeing\"}\n```"))
	})

	obj, err := c.CompleteJSON(context.Background(), "", "extract")
	require.NoError(t, err)
	assert.Equal(t, "Boeing", obj["supplier_name"])
}

func TestCompleteJSONRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(completionBody(`{"ok": true}`))
	})

	obj, err := c.CompleteJSON(context.Background(), "", "p")
	require.NoError(t, err)
	assert.Equal(t, true, obj["ok"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteJSONFailsFastOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key"}}`))
	})

	_, err := c.CompleteJSON(context.Background(), "", "p")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		`{"a": 1}`:                          `{"a": 1}`,
		"prefix {\"a\": {\"b\": 2}} suffix": `{"a": {"b": 2}}`,
		`{"s": "brace } in string"}`:        `{"s": "brace } in string"}`,
		"no json here":                      "",
		`{"unterminated": `:                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, extractJSON(in), "input %q", in)
	}
}
