package nlp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAI_Complete(t *testing.T) {
	var got oaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key-1234", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello, Ava!"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	gw := NewOpenAI(Config{APIKey: "test-key-1234", BaseURL: srv.URL + "/v1/"})
	reply, err := gw.Complete(context.Background(), []Message{
		{Role: "system", Content: "be nice"},
		{Role: "user", Content: "hi"},
	}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ava!", reply)

	assert.Equal(t, "openai/gpt-oss-120b", got.Model)
	assert.Equal(t, 0.3, got.Temperature)
	assert.Equal(t, 1500, got.MaxTokens)
	assert.Equal(t, 0.9, got.TopP)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestOpenAI_StatusErrors(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   Kind
	}{
		{http.StatusUnauthorized, `{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`, KindUnauthorized},
		{http.StatusTooManyRequests, `{}`, KindRateLimited},
		{http.StatusBadGateway, `upstream down`, KindUpstreamFault},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))

		_, err := NewOpenAI(Config{BaseURL: srv.URL}).Complete(context.Background(), nil, DefaultParams())
		srv.Close()

		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.kind, Classify(err), "status %d", tc.status)
	}
}

func TestOpenAI_RedactsKeyFromErrors(t *testing.T) {
	const key = "gsk_super_secret_value"
	// An unreachable URL that embeds the key makes the transport error
	// message contain it.
	gw := NewOpenAI(Config{APIKey: key, BaseURL: "http://127.0.0.1:1/" + key})
	_, err := gw.Complete(context.Background(), nil, DefaultParams())
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), key), "error leaks key: %v", err)
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(Config{BaseURL: srv.URL}).Complete(context.Background(), nil, DefaultParams())
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestOpenAI_HonoursContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOpenAI(Config{BaseURL: srv.URL}).Complete(ctx, nil, DefaultParams())
	assert.ErrorIs(t, err, context.Canceled)
}
