package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/fyerfyer/corpus-QA-engine/internal/cache"
	"github.com/fyerfyer/corpus-QA-engine/internal/llm"
	"github.com/fyerfyer/corpus-QA-engine/internal/models"
	"github.com/fyerfyer/corpus-QA-engine/internal/repository"
)

// 固定回复
const (
	// NotReadyAnswer 检索尚未就绪时的回复
	NotReadyAnswer = "The knowledge base is not ready yet. Please try again shortly."
	// EmptyCorpusAnswer 语料为空时的回复
	EmptyCorpusAnswer = "Please upload a document."
	// NoInfoAnswer 检索无命中时的回复
	NoInfoAnswer = "I could not find any relevant information in the documents for that question."
)

// ChatResult 一次问答的结果
type ChatResult struct {
	Answer    string          // 回答内容
	Sources   []models.Source // 引用来源
	Cached    bool            // 是否命中缓存
	SmallTalk bool            // 是否为寒暄回复
}

// QAService 问答服务
// 协调寒暄短路、缓存、查询改写、混合检索和回答生成
type QAService struct {
	engine   *RetrievalEngine             // 检索引擎
	rag      *llm.RAGService              // RAG服务
	cache    cache.Cache                  // 回答缓存，为nil时关闭缓存
	chatLogs repository.ChatLogRepository // 问答日志，可为nil
	logger   *logrus.Logger
	cacheTTL time.Duration // 缓存有效期
}

// QAOption 问答服务配置选项
type QAOption func(*QAService)

// NewQAService 创建问答服务实例
func NewQAService(
	engine *RetrievalEngine,
	rag *llm.RAGService,
	answerCache cache.Cache,
	opts ...QAOption,
) *QAService {
	service := &QAService{
		engine:   engine,
		rag:      rag,
		cache:    answerCache,
		logger:   logrus.New(),
		cacheTTL: time.Hour,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithCacheTTL 设置缓存时间
func WithCacheTTL(ttl time.Duration) QAOption {
	return func(s *QAService) {
		s.cacheTTL = ttl
	}
}

// WithChatLogs 设置问答日志仓储
func WithChatLogs(chatLogs repository.ChatLogRepository) QAOption {
	return func(s *QAService) {
		s.chatLogs = chatLogs
	}
}

// WithQALogger 设置日志记录器
func WithQALogger(logger *logrus.Logger) QAOption {
	return func(s *QAService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Chat 处理一次问答请求
func (s *QAService) Chat(ctx context.Context, question string, traceID string) (*ChatResult, error) {
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}

	started := time.Now()

	// 1. 寒暄短路，完全绕过检索
	if reply, ok := SmallTalk(question); ok {
		result := &ChatResult{Answer: reply, SmallTalk: true}
		s.saveChatLog(traceID, question, "", result, started)
		return result, nil
	}

	// 2. 检索未就绪时直接返回提示
	if !s.engine.IsReady() {
		answer := NotReadyAnswer
		if s.engine.State() == StateEmpty {
			answer = EmptyCorpusAnswer
		}
		return &ChatResult{Answer: answer}, nil
	}

	// 3. 命中缓存直接返回
	cacheKey := cache.AnswerKey(question)
	if s.cache != nil {
		if cached, found, err := s.cache.Get(cacheKey); err == nil && found {
			result := &ChatResult{Answer: cached, Cached: true}
			if sources, ok := s.cachedSources(question); ok {
				result.Sources = sources
			}
			s.saveChatLog(traceID, question, "", result, started)
			return result, nil
		}
	}

	// 4. 改写查询提升召回，失败时退回原始问题
	refined := s.rag.RefineQuery(ctx, question)
	if refined != question {
		s.logger.WithFields(logrus.Fields{
			"original": question,
			"refined":  refined,
		}).Debug("Query refined")
	}

	// 5. 混合检索
	results, err := s.engine.Retrieve(ctx, refined)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	if len(results) == 0 {
		result := &ChatResult{Answer: NoInfoAnswer}
		if s.cache != nil {
			s.cache.Set(cacheKey, result.Answer, s.cacheTTL)
		}
		s.saveChatLog(traceID, question, refined, result, started)
		return result, nil
	}

	// 6. 格式化上下文并生成回答
	contexts := make([]string, len(results))
	sources := make([]models.Source, len(results))
	for i, r := range results {
		contexts[i] = llm.FormatContextBlock(r.Passage.Text, r.Passage.Source, r.Passage.Page, r.Passage.Section)
		sources[i] = models.Source{
			Document: r.Passage.Source,
			Page:     r.Passage.Page,
			Section:  r.Passage.Section,
			Text:     r.Passage.Text,
			Score:    r.Score,
		}
	}

	ragResponse, err := s.rag.Answer(ctx, refined, contexts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	result := &ChatResult{
		Answer:  ragResponse.Answer,
		Sources: sources,
	}

	// 7. 缓存回答和来源
	if s.cache != nil {
		s.cache.Set(cacheKey, result.Answer, s.cacheTTL)
		if data, err := json.Marshal(sources); err == nil {
			s.cache.Set(s.sourcesKey(question), string(data), s.cacheTTL)
		}
	}

	s.saveChatLog(traceID, question, refined, result, started)
	return result, nil
}

// sourcesKey 来源列表的缓存键
func (s *QAService) sourcesKey(question string) string {
	return cache.AnswerKey(question) + ":sources"
}

// cachedSources 读取缓存的来源列表
func (s *QAService) cachedSources(question string) ([]models.Source, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, found, err := s.cache.Get(s.sourcesKey(question))
	if err != nil || !found {
		return nil, false
	}

	var sources []models.Source
	if err := json.Unmarshal([]byte(data), &sources); err != nil {
		// 解析失败就当没有缓存，不影响主流程
		s.logger.WithError(err).Warn("Failed to unmarshal cached sources")
		return nil, false
	}
	return sources, true
}

// saveChatLog 写入问答日志，失败只记日志
func (s *QAService) saveChatLog(traceID, question, refined string, result *ChatResult, started time.Time) {
	if s.chatLogs == nil {
		return
	}

	log := &models.ChatLog{
		TraceID:         traceID,
		Question:        question,
		RefinedQuestion: refined,
		Answer:          result.Answer,
		Cached:          result.Cached,
		SmallTalk:       result.SmallTalk,
		LatencyMs:       time.Since(started).Milliseconds(),
	}
	if len(result.Sources) > 0 {
		if data, err := json.Marshal(result.Sources); err == nil {
			log.Sources = datatypes.JSON(data)
		}
	}

	if err := s.chatLogs.Save(log); err != nil {
		s.logger.WithError(err).Warn("Failed to save chat log")
	}
}

// ClearCache 清除问答缓存
func (s *QAService) ClearCache() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear()
}
