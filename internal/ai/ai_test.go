package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model    string        `json:"model"`
			Messages []ChatMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "hello", body.Messages[0].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hi there \n"}}]}`))
	}))
	defer srv.Close()

	gen := NewGenerator(NewOpenAICompatibleClient(), ChatConfig{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "gpt-test"})
	out, err := gen.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestEmbedBatchRestoresInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 3, body["dimensions"])

		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0,1,0]},
			{"index":0,"embedding":[1,0,0]}
		]}`))
	}))
	defer srv.Close()

	emb := NewEmbedder(NewOpenAICompatibleClient(), EmbeddingConfig{BaseURL: srv.URL, Model: "embed", Dimensions: 3})
	vectors, err := emb.EmbedTexts(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0, 0}, {0, 1, 0}}, vectors)

	_, err = emb.EmbedTexts(context.Background(), []string{"ok", "  "})
	assert.ErrorIs(t, err, ErrProvider)
}

func TestErrorClasses(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	emb := NewEmbedder(NewOpenAICompatibleClient(), EmbeddingConfig{BaseURL: srv.URL, Model: "embed"})

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusGatewayTimeout, ErrTimeout},
		{http.StatusBadRequest, ErrProvider},
		{http.StatusInternalServerError, ErrProvider},
	}
	for _, tt := range tests {
		status = tt.status
		_, err := emb.EmbedQuery(context.Background(), "question")
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, tt.status, apiErr.StatusCode)
	}
}

func TestTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	slow := NewOpenAICompatibleClientWithHTTP(&http.Client{Timeout: 20 * time.Millisecond})
	_, err := slow.EmbedBatch(context.Background(), EmbeddingConfig{BaseURL: srv.URL}, []string{"x"})
	assert.ErrorIs(t, err, ErrTimeout)

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	_, err = NewOpenAICompatibleClient().EmbedBatch(context.Background(), EmbeddingConfig{BaseURL: url}, []string{"x"})
	assert.ErrorIs(t, err, ErrConnection)
}
