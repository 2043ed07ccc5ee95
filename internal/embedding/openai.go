package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// openaiEmbeddingRequest OpenAI兼容嵌入API的请求结构
type openaiEmbeddingRequest struct {
	Model string   `json:"model"` // 模型名称
	Input []string `json:"input"` // 需要嵌入的文本列表
}

// openaiEmbeddingResponse OpenAI兼容嵌入API的响应结构
type openaiEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// OpenAIClient OpenAI兼容端点的嵌入客户端
// 同样适用于Ollama等提供/v1/embeddings接口的本地服务
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	batchSize  int
	maxRetries int
	httpClient *http.Client
}

// NewOpenAIClient 创建新的OpenAI兼容嵌入客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.BaseURL == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, "base URL is required")
	}

	// 非法批大小会让EmbedBatch原地打转，回退到默认值
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}

	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.model
}

// Embed 生成单条文本的向量表示
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}

	vectors, err := c.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, NewEmbeddingError(ErrCodeServerError, "empty embedding response")
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成多条文本的向量表示
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, text := range texts {
		if text == "" {
			return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
		}
	}

	// 按批处理大小分批请求
	var vectors [][]float32
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.request(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// request 发送嵌入请求，带指数退避重试
func (c *OpenAIClient) request(ctx context.Context, input []string) ([][]float32, error) {
	reqBody := openaiEmbeddingRequest{
		Model: c.model,
		Input: input,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, err.Error())
	}

	maxRetries := c.maxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避
			select {
			case <-ctx.Done():
				return nil, NewEmbeddingError(ErrCodeTimeout, ErrMsgTimeout)
			case <-time.After(time.Duration(1<<attempt) * time.Second):
			}
		}

		vectors, retryable, err := c.doRequest(ctx, payload)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

// doRequest 执行单次HTTP请求
// 返回的retryable指示该错误是否值得重试
func (c *OpenAIClient) doRequest(ctx context.Context, payload []byte) ([][]float32, bool, error) {
	url := c.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, NewEmbeddingError(ErrCodeInvalidRequest, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, NewEmbeddingError(ErrCodeNetworkError, ErrMsgNetworkError+": "+err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, NewEmbeddingError(ErrCodeNetworkError, err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, NewEmbeddingError(ErrCodeRateLimited, ErrMsgRateLimited)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, false, NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	case resp.StatusCode >= 500:
		return nil, true, NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("%s (status=%d)", ErrMsgServerError, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, false, NewEmbeddingError(ErrCodeInvalidRequest,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed openaiEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, NewEmbeddingError(ErrCodeServerError, "malformed response: "+err.Error())
	}
	if parsed.Error != nil {
		return nil, false, NewEmbeddingError(ErrCodeServerError, parsed.Error.Message)
	}

	// 响应顺序按index对齐输入顺序
	vectors := make([][]float32, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, false, NewEmbeddingError(ErrCodeServerError, "embedding index out of range")
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, false, nil
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
	// Ollama暴露OpenAI兼容接口，复用同一实现
	RegisterClient("ollama", NewOpenAIClient)
}
