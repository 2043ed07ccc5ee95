package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIClient OpenAI兼容端点的大模型客户端实现
// 同样适用于Ollama等提供/v1/chat/completions接口的本地服务
type OpenAIClient struct {
	apiKey      string       // API密钥
	baseURL     string       // API端点
	model       string       // 模型名称
	httpClient  *http.Client // HTTP客户端
	maxRetries  int          // 最大重试次数
	maxTokens   int          // 最大生成Token数
	temperature float32      // 温度参数
	topP        float32      // topP参数
}

// NewOpenAIClient 创建新的OpenAI兼容大模型客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.BaseURL == "" {
		return nil, NewLLMError(ErrCodeInvalidRequest, "base URL is required")
	}

	return &OpenAIClient{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.model
}

// Generate 根据提示词生成回答
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, options ...RequestOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	messages := []Message{
		{
			Role:    RoleUser,
			Content: prompt,
		},
	}
	return c.Chat(ctx, messages, options...)
}

// Chat 进行多轮对话
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, options ...RequestOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	opts := &RequestOptions{}
	for _, opt := range options {
		opt(opts)
	}

	req := &chatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}

	// 请求级别选项覆盖客户端默认参数
	if opts.MaxTokens != nil {
		req.MaxTokens = opts.MaxTokens
	} else if c.maxTokens > 0 {
		maxTokens := c.maxTokens
		req.MaxTokens = &maxTokens
	}

	if opts.Temperature != nil {
		req.Temperature = opts.Temperature
	} else if c.temperature > 0 {
		temp := c.temperature
		req.Temperature = &temp
	}

	if opts.TopP != nil {
		req.TopP = opts.TopP
	} else if c.topP > 0 {
		topP := c.topP
		req.TopP = &topP
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	return c.processResponse(resp)
}

// sendRequest 发送API请求并解析响应，带指数退避重试
func (c *OpenAIClient) sendRequest(ctx context.Context, req *chatCompletionRequest) (*chatCompletionResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	url := c.baseURL + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避重试
			select {
			case <-ctx.Done():
				return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", readErr))
			continue
		}

		// 429和5xx值得重试，其余错误直接返回
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = NewLLMError(ErrCodeRateLimited, ErrMsgRateLimited)
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = NewLLMError(ErrCodeServerError,
				fmt.Sprintf("%s (status=%d)", ErrMsgServerError, resp.StatusCode))
			continue
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, NewLLMError(ErrCodeInvalidRequest,
				fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(body)))
		}

		var parsed chatCompletionResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
		}
		if parsed.Error != nil {
			return nil, NewLLMError(ErrCodeServerError,
				fmt.Sprintf("API error: %s (%s)", parsed.Error.Message, parsed.Error.Code))
		}
		return &parsed, nil
	}

	return nil, lastErr
}

// processResponse 处理对话接口的响应
func (c *OpenAIClient) processResponse(resp *chatCompletionResponse) (*Response, error) {
	if len(resp.Choices) == 0 {
		return nil, NewLLMError(ErrCodeServerError, "empty response from API")
	}

	choice := resp.Choices[0]
	result := &Response{
		Text:       choice.Message.Content,
		Messages:   []Message{choice.Message},
		TokenCount: resp.Usage.TotalTokens,
		ModelName:  c.model,
		FinishTime: time.Now(),
	}
	return result, nil
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
	// Ollama暴露OpenAI兼容接口，复用同一实现
	RegisterClient("ollama", NewOpenAIClient)
}
