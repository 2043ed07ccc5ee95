package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newChatServer 创建返回固定回答的测试服务器
func newChatServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)

		resp := chatCompletionResponse{Model: req.Model}
		resp.Choices = []struct {
			Index        int     `json:"index"`
			FinishReason string  `json:"finish_reason"`
			Message      Message `json:"message"`
		}{
			{Index: 0, FinishReason: "stop", Message: Message{Role: RoleAssistant, Content: answer}},
		}
		resp.Usage.TotalTokens = 42
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

// TestOpenAIClientGenerate 测试文本生成
func TestOpenAIClientGenerate(t *testing.T) {
	server := newChatServer(t, "generated answer")
	defer server.Close()

	client, err := NewOpenAIClient(
		WithBaseURL(server.URL),
		WithModel("test-model"),
	)
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", resp.Text)
	assert.Equal(t, 42, resp.TokenCount)
	assert.Equal(t, "test-model", resp.ModelName)
}

// TestOpenAIClientChat 测试多轮对话
func TestOpenAIClientChat(t *testing.T) {
	server := newChatServer(t, "chat answer")
	defer server.Close()

	client, err := NewOpenAIClient(WithBaseURL(server.URL))
	require.NoError(t, err)

	messages := []Message{
		{Role: RoleSystem, Content: "you are a helpful assistant"},
		{Role: RoleUser, Content: "hi"},
	}
	resp, err := client.Chat(context.Background(), messages)
	require.NoError(t, err)
	assert.Equal(t, "chat answer", resp.Text)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, RoleAssistant, resp.Messages[0].Role)
}

// TestOpenAIClientEmptyInput 测试空输入错误
func TestOpenAIClientEmptyInput(t *testing.T) {
	client, err := NewOpenAIClient(WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeEmptyPrompt, llmErr.Code)

	_, err = client.Chat(context.Background(), nil)
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidRequest, llmErr.Code)
}

// TestOpenAIClientRetryOnServerError 测试5xx错误重试
func TestOpenAIClientRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := chatCompletionResponse{}
		resp.Choices = []struct {
			Index        int     `json:"index"`
			FinishReason string  `json:"finish_reason"`
			Message      Message `json:"message"`
		}{
			{Message: Message{Role: RoleAssistant, Content: "recovered"}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(
		WithBaseURL(server.URL),
		WithMaxRetries(2),
	)
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	assert.Equal(t, int32(2), calls.Load())
}

// TestOpenAIClientInvalidAPIKey 测试401不重试直接报错
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

	_, err = client.Generate(context.Background(), "hello")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

// TestConfigAndOptions 测试配置选项
func TestConfigAndOptions(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ModelLlama3, cfg.Model)
	assert.Equal(t, 60*time.Second, cfg.Timeout)

	cfg = NewConfig(
		WithAPIKey("test-key"),
		WithModel("custom-model"),
		WithTimeout(30*time.Second),
		WithMaxRetries(5),
		WithMaxTokens(100),
		WithTemperature(0.5),
		WithTopP(0.8),
	)

	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, "custom-model", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 100, cfg.MaxTokens)
	assert.Equal(t, float32(0.5), cfg.Temperature)
	assert.Equal(t, float32(0.8), cfg.TopP)
}

// TestRequestOptions 测试请求级别选项
func TestRequestOptions(t *testing.T) {
	opts := &RequestOptions{}

	maxTokens := 123
	WithRequestMaxTokens(maxTokens)(opts)
	assert.Equal(t, &maxTokens, opts.MaxTokens)

	temp := float32(0.75)
	WithRequestTemperature(temp)(opts)
	assert.Equal(t, &temp, opts.Temperature)

	topP := float32(0.9)
	WithRequestTopP(topP)(opts)
	assert.Equal(t, &topP, opts.TopP)

	WithRequestStream(true)(opts)
	assert.True(t, opts.Stream)
}

// TestClientFactory 测试客户端工厂功能
func TestClientFactory(t *testing.T) {
	testFactory := func(opts ...Option) (Client, error) {
		return &stubClient{}, nil
	}
	RegisterClient("test-factory", testFactory)

	client, err := NewClient("test-factory")
	assert.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewClient("invalid-type")
	assert.Error(t, err)
	var llmErr LLMError
	assert.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidRequest, llmErr.Code)
}
