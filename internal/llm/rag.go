package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultAnswerTemplate 默认回答提示词模板
// 要求模型直接陈述事实，并在结尾以References列表给出出处。
// 包含变量：
// {{.Question}} - 用户问题
// {{.Context}} - 检索的上下文
const DefaultAnswerTemplate = `You are a Corporate Assistant.

### RULES:
1. **Direct Answers Only:** Answer the user's question directly as if you are stating facts.
   - DO NOT say: "According to the document...", "The document titled X says...", or "As outlined in..."
   - DO say: "The Internal Code of Business Conduct addresses conflicts of interest..."

2. **Content First:** Do NOT include any inline citations or brackets in the main text.

3. **Reference List (Westminster Style):**
   At the very bottom, leave two blank lines and add a "References" section.
   Format:
   **References:**
   * [Author/Company]. ([Year]). *[Document Name]*. [Page Number], [Section Name].

   (Use "CDB PLC" as author and "n.d." if date is unknown).

### DOCUMENT CONTEXT:
{{.Context}}

### USER QUESTION:
{{.Question}}

### ANSWER:
`

// QueryRefineTemplate 查询改写提示词模板
// 修正拼写错误并澄清问题，提升检索召回质量
const QueryRefineTemplate = `You are a Query Corrector.
1. Fix spelling errors (e.g. "onbord" -> "onboarding").
2. Clarify questions.
User Input: {{.Question}}
Corrected Input:
`

// contextSeparator 上下文片段之间的分隔符
const contextSeparator = "\n---\n"

// FormatContextBlock 将单个检索片段及其出处格式化为上下文块
// 元数据内联在片段之后，模型生成References时依赖这些标注
func FormatContextBlock(content, source string, page int, section string) string {
	return fmt.Sprintf("Content: %s\n[Metadata: Document='%s', Page=%d, Section='%s']",
		content, source, page, section)
}

// JoinContextBlocks 拼接多个上下文块
func JoinContextBlocks(blocks []string) string {
	return strings.Join(blocks, contextSeparator)
}

// RAGConfig 检索增强生成配置
type RAGConfig struct {
	// 回答提示词模板
	Template string
	// 查询改写提示词模板
	RefineTemplate string
	// 最大Token数
	MaxTokens int
	// 温度参数
	Temperature float32
	// 超时时间
	Timeout time.Duration
	// 是否启用查询改写
	RefineQuery bool
}

// DefaultRAGConfig 默认RAG配置
func DefaultRAGConfig() *RAGConfig {
	return &RAGConfig{
		Template:       DefaultAnswerTemplate,
		RefineTemplate: QueryRefineTemplate,
		MaxTokens:      2048,
		Temperature:    0.7,
		Timeout:        60 * time.Second,
		RefineQuery:    true,
	}
}

// RAGService 实现检索增强生成服务
type RAGService struct {
	Client Client       // 大模型客户端
	config *RAGConfig   // 配置
	mu     sync.RWMutex // 配置互斥锁
}

// NewRAG 创建新的检索增强生成服务
func NewRAG(client Client, opts ...RAGOption) *RAGService {
	cfg := DefaultRAGConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &RAGService{
		Client: client,
		config: cfg,
	}
}

// RAGOption RAG配置选项函数类型
type RAGOption func(*RAGConfig)

// WithTemplate 设置回答提示词模板
func WithTemplate(template string) RAGOption {
	return func(c *RAGConfig) {
		c.Template = template
	}
}

// WithRefineTemplate 设置查询改写提示词模板
func WithRefineTemplate(template string) RAGOption {
	return func(c *RAGConfig) {
		c.RefineTemplate = template
	}
}

// WithRAGMaxTokens 设置最大Token数
func WithRAGMaxTokens(tokens int) RAGOption {
	return func(c *RAGConfig) {
		c.MaxTokens = tokens
	}
}

// WithRAGTemperature 设置温度参数
func WithRAGTemperature(temp float32) RAGOption {
	return func(c *RAGConfig) {
		c.Temperature = temp
	}
}

// WithRAGTimeout 设置请求超时时间
func WithRAGTimeout(timeout time.Duration) RAGOption {
	return func(c *RAGConfig) {
		c.Timeout = timeout
	}
}

// WithQueryRefine 设置是否启用查询改写
func WithQueryRefine(enable bool) RAGOption {
	return func(c *RAGConfig) {
		c.RefineQuery = enable
	}
}

// RefineQuery 改写用户查询
// 改写失败时返回原始查询，检索降级但不中断
func (r *RAGService) RefineQuery(ctx context.Context, question string) string {
	r.mu.RLock()
	cfg := r.config
	r.mu.RUnlock()

	if !cfg.RefineQuery || question == "" {
		return question
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	prompt := strings.ReplaceAll(cfg.RefineTemplate, "{{.Question}}", question)
	response, err := r.Client.Generate(
		ctxWithTimeout,
		prompt,
		WithRequestTemperature(0),
	)
	if err != nil {
		return question
	}

	refined := strings.TrimSpace(response.Text)
	if refined == "" {
		return question
	}
	return refined
}

// Answer 根据上下文和问题生成回答
// contexts是已格式化的上下文块（见FormatContextBlock）
func (r *RAGService) Answer(ctx context.Context, question string, contexts []string) (*RAGResponse, error) {
	if question == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "question cannot be empty")
	}

	r.mu.RLock()
	cfg := r.config
	r.mu.RUnlock()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	prompt := r.buildPrompt(question, contexts)

	response, err := r.Client.Generate(
		ctxWithTimeout,
		prompt,
		WithRequestMaxTokens(cfg.MaxTokens),
		WithRequestTemperature(cfg.Temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %v", err)
	}

	return &RAGResponse{
		Answer: response.Text,
	}, nil
}

// buildPrompt 构建增强提示词
func (r *RAGService) buildPrompt(question string, contexts []string) string {
	r.mu.RLock()
	template := r.config.Template
	r.mu.RUnlock()

	prompt := template
	prompt = strings.ReplaceAll(prompt, "{{.Question}}", question)
	prompt = strings.ReplaceAll(prompt, "{{.Context}}", JoinContextBlocks(contexts))

	return prompt
}

// SetTemplate 设置自定义回答提示词模板
func (r *RAGService) SetTemplate(template string) *RAGService {
	r.mu.Lock()
	r.config.Template = template
	r.mu.Unlock()
	return r
}
