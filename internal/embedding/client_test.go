package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmbeddingServer 启动一个OpenAI兼容的嵌入接口桩服务
// 每条输入返回一个固定维度的递增向量
func newEmbeddingServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req openaiEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp openaiEmbeddingResponse
		for i := range req.Input {
			vector := make([]float32, dim)
			for j := range vector {
				vector[j] = float32(i + j)
			}
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: vector})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIClientEmbed(t *testing.T) {
	server := newEmbeddingServer(t, 4)
	defer server.Close()

	client, err := NewOpenAIClient(
		WithBaseURL(server.URL),
		WithModel("nomic-embed-text"),
		WithDimensions(4),
	)
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", client.Name())

	vector, err := client.Embed(context.Background(), "some passage text")
	require.NoError(t, err)
	assert.Len(t, vector, 4)
}

func TestOpenAIClientEmbedBatch(t *testing.T) {
	server := newEmbeddingServer(t, 4)
	defer server.Close()

	// 批大小2强制跨多次请求
	client, err := NewOpenAIClient(
		WithBaseURL(server.URL),
		WithBatchSize(2),
	)
	require.NoError(t, err)

	texts := []string{"one", "two", "three", "four", "five"}
	vectors, err := client.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, len(texts))
	for _, v := range vectors {
		assert.Len(t, v, 4)
	}
}

func TestOpenAIClientBatchSizeClamped(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req openaiEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Input)

		var resp openaiEmbeddingResponse
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{1}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	// 批大小0回退到默认值而不是死循环
	client, err := NewOpenAIClient(
		WithBaseURL(server.URL),
		WithBatchSize(0),
	)
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	assert.Len(t, vectors, 3)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIClientEmptyInput(t *testing.T) {
	client, err := NewOpenAIClient(WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "")
	assert.Error(t, err)

	_, err = client.EmbedBatch(context.Background(), []string{"ok", ""})
	assert.Error(t, err)

	vectors, err := client.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestOpenAIClientServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(
		WithBaseURL(server.URL),
		WithMaxRetries(2),
	)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "text")
	require.Error(t, err)

	var embErr EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, ErrCodeServerError, embErr.Code)
	assert.Equal(t, int32(2), calls.Load(), "server errors should be retried")
}

func TestOpenAIClientInvalidAPIKey(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(
		WithBaseURL(server.URL),
		WithMaxRetries(3),
	)
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "text")
	require.Error(t, err)

	var embErr EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, embErr.Code)
	assert.Equal(t, int32(1), calls.Load(), "auth failures must not be retried")
}

func TestOpenAIClientOrdersByIndex(t *testing.T) {
	// 响应乱序返回时按index恢复输入顺序
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp openaiEmbeddingResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(i)}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(WithBaseURL(server.URL))
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{0}, vectors[0])
	assert.Equal(t, []float32{1}, vectors[1])
	assert.Equal(t, []float32{2}, vectors[2])
}

func TestClientFactory(t *testing.T) {
	client, err := NewClient("openai", WithBaseURL("http://127.0.0.1:11434/v1"))
	require.NoError(t, err)
	assert.NotNil(t, client)

	client, err = NewClient("ollama", WithBaseURL("http://127.0.0.1:11434/v1"))
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewClient("unknown")
	assert.Error(t, err)
}

func TestConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithAPIKey("key"),
		WithModel("custom-model"),
		WithDimensions(128),
		WithBatchSize(8),
		WithMaxRetries(5),
	)

	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, "custom-model", cfg.Model)
	assert.Equal(t, 128, cfg.Dimensions)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 5, cfg.MaxRetries)
	// 未覆盖的字段保持默认值
	assert.Equal(t, "http://127.0.0.1:11434/v1", cfg.BaseURL)
}
