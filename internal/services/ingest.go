package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/corpus-QA-engine/internal/document"
	"github.com/fyerfyer/corpus-QA-engine/internal/embedding"
	"github.com/fyerfyer/corpus-QA-engine/internal/lexical"
	"github.com/fyerfyer/corpus-QA-engine/internal/models"
	"github.com/fyerfyer/corpus-QA-engine/internal/repository"
	"github.com/fyerfyer/corpus-QA-engine/internal/retriever"
	"github.com/fyerfyer/corpus-QA-engine/internal/vectordb"
	"github.com/fyerfyer/corpus-QA-engine/pkg/storage"
)

// State 摄取状态机的状态
type State string

const (
	// StateUninitialized 初始状态
	StateUninitialized State = "uninitialized"
	// StateScanning 正在枚举语料目录
	StateScanning State = "scanning"
	// StateEmpty 语料为空，服务永不就绪
	StateEmpty State = "empty"
	// StateIndexing 正在解析、分块、嵌入并写入向量存储
	StateIndexing State = "indexing"
	// StateLexicalBuilding 正在从持久化段落构建词法索引
	StateLexicalBuilding State = "lexical_building"
	// StateReady 检索就绪
	StateReady State = "ready"
	// StateUnavailable 存储或嵌入服务故障，终止状态
	StateUnavailable State = "unavailable"
)

// IngestService 摄取编排服务
// 进程启动时运行一次的状态机：
// Uninitialized → Scanning → (Empty | Indexing) → LexicalBuilding → Ready
// 不支持在进程生命周期内重新进入Scanning
type IngestService struct {
	source       storage.Source      // 语料来源
	embedder     embedding.Client    // 嵌入模型客户端
	batch        *embedding.BatchProcessor
	vectors      vectordb.Repository // 向量存储
	chunker      *document.Chunker   // 文本分块器
	tagger       *document.Tagger    // 元数据标注器
	ledger       repository.DocumentRepository // 摄取台账，可为nil
	logger       *logrus.Logger
	retrieverCfg retriever.Config
	forceRebuild bool // 强制清空重建向量存储

	mu       sync.RWMutex
	state    State
	ensemble *retriever.Ensemble
	lexIndex *lexical.Index
}

// IngestOption 摄取服务配置选项
type IngestOption func(*IngestService)

// NewIngestService 创建摄取编排服务实例
func NewIngestService(
	source storage.Source,
	embedder embedding.Client,
	vectors vectordb.Repository,
	opts ...IngestOption,
) (*IngestService, error) {
	chunker, err := document.NewChunker(document.DefaultChunkerConfig())
	if err != nil {
		return nil, err
	}

	service := &IngestService{
		source:       source,
		embedder:     embedder,
		batch:        embedding.NewBatchProcessor(embedder, 16, 4),
		vectors:      vectors,
		chunker:      chunker,
		tagger:       document.NewTagger(),
		logger:       logrus.New(),
		retrieverCfg: retriever.DefaultConfig(),
		state:        StateUninitialized,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// WithChunkerConfig 设置分块参数
func WithChunkerConfig(cfg document.ChunkerConfig) IngestOption {
	return func(s *IngestService) {
		if chunker, err := document.NewChunker(cfg); err == nil {
			s.chunker = chunker
		}
	}
}

// WithForceRebuild 设置强制重建模式
// 开启后会清空已持久化的向量存储并重新摄取全部语料
func WithForceRebuild(force bool) IngestOption {
	return func(s *IngestService) {
		s.forceRebuild = force
	}
}

// WithIngestLogger 设置日志记录器
func WithIngestLogger(logger *logrus.Logger) IngestOption {
	return func(s *IngestService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLedger 设置摄取台账仓储
func WithLedger(ledger repository.DocumentRepository) IngestOption {
	return func(s *IngestService) {
		s.ledger = ledger
	}
}

// WithRetrieverConfig 设置混合检索配置
func WithRetrieverConfig(cfg retriever.Config) IngestOption {
	return func(s *IngestService) {
		s.retrieverCfg = cfg
	}
}

// WithBatchProcessor 设置嵌入批处理参数
func WithBatchProcessor(batchSize, maxWorkers int) IngestOption {
	return func(s *IngestService) {
		s.batch = embedding.NewBatchProcessor(s.embedder, batchSize, maxWorkers)
	}
}

// State 返回当前状态
func (s *IngestService) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsReady 检索是否就绪
func (s *IngestService) IsReady() bool {
	return s.State() == StateReady
}

// Ensemble 返回构建好的混合检索器，未就绪时为nil
func (s *IngestService) Ensemble() *retriever.Ensemble {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ensemble
}

// setState 转移状态并记录日志
func (s *IngestService) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"from": prev,
		"to":   state,
	}).Info("Ingest state transition")
}

// Run 执行一次完整的摄取流程
// 只能调用一次；重复调用直接报错
func (s *IngestService) Run(ctx context.Context) error {
	if s.State() != StateUninitialized {
		return fmt.Errorf("ingestion already ran, current state: %s", s.State())
	}

	run := &models.IngestRun{
		ID:     uuid.New().String(),
		Forced: s.forceRebuild,
	}
	s.recordRunStart(run)

	err := s.run(ctx, run)

	run.State = string(s.State())
	if err != nil {
		run.Error = err.Error()
	}
	s.recordRunFinish(run)

	return err
}

func (s *IngestService) run(ctx context.Context, run *models.IngestRun) error {
	// Uninitialized → Scanning
	s.setState(StateScanning)

	files, err := s.source.List(ctx)
	if err != nil {
		// Scanning → Unavailable：语料目录不可读
		s.setState(StateUnavailable)
		return fmt.Errorf("failed to scan corpus: %w", err)
	}

	if len(files) == 0 {
		// Scanning → Empty：永不就绪
		s.logger.Warn("No documents found in corpus")
		s.setState(StateEmpty)
		return nil
	}

	count, err := s.vectors.Count()
	if err != nil {
		s.setState(StateUnavailable)
		return fmt.Errorf("failed to read vector index: %w", err)
	}

	if s.forceRebuild && count > 0 {
		s.logger.WithField("passages", count).Info("Force rebuild enabled, resetting vector index")
		if err := s.vectors.Reset(); err != nil {
			s.setState(StateUnavailable)
			return fmt.Errorf("failed to reset vector index: %w", err)
		}
		count = 0
	}

	if count == 0 {
		// Scanning → Indexing
		s.setState(StateIndexing)
		if err := s.indexCorpus(ctx, files, run); err != nil {
			s.setState(StateUnavailable)
			return err
		}
	} else {
		// 建库一次守卫：向量存储非空时跳过重嵌入
		s.logger.WithField("passages", count).Info("Vector index already populated, skipping indexing")
	}

	count, err = s.vectors.Count()
	if err != nil {
		s.setState(StateUnavailable)
		return fmt.Errorf("failed to read vector index: %w", err)
	}
	if count == 0 {
		// 语料里的文件全部不可读
		s.logger.Warn("Vector index is empty after indexing pass")
		s.setState(StateEmpty)
		return nil
	}
	run.PassageCount = count

	// Indexing/Scanning → LexicalBuilding
	s.setState(StateLexicalBuilding)

	passages, err := s.vectors.Passages()
	if err != nil {
		s.setState(StateUnavailable)
		return fmt.Errorf("failed to load passages for lexical index: %w", err)
	}

	lexIndex := lexical.NewIndex(passages)
	ensemble := retriever.NewEnsemble(s.embedder, s.vectors, lexIndex, s.retrieverCfg)

	s.mu.Lock()
	s.lexIndex = lexIndex
	s.ensemble = ensemble
	s.mu.Unlock()

	// LexicalBuilding → Ready
	s.setState(StateReady)
	s.logger.WithFields(logrus.Fields{
		"passages":  count,
		"documents": run.DocumentCount,
	}).Info("Retrieval engine is ready")

	return nil
}

// indexCorpus 摄取全部语料文件
// 单文件解析失败只跳过该文件；嵌入或存储失败中止整轮摄取
func (s *IngestService) indexCorpus(ctx context.Context, files []storage.FileInfo, run *models.IngestRun) error {
	for _, file := range files {
		passageCount, err := s.indexDocument(ctx, file, run)
		if err != nil {
			if errors.Is(err, document.ErrUnreadableDocument) {
				// 解析失败：记录并跳过，继续处理其余文档
				s.logger.WithFields(logrus.Fields{
					"file":  file.Name,
					"error": err.Error(),
				}).Warn("Unreadable document, skipping")
				run.SkippedCount++
				continue
			}
			// 嵌入服务或向量存储故障：中止本轮，已持久化的内容保持不变
			return fmt.Errorf("failed to index %s: %w", file.Name, err)
		}

		run.DocumentCount++
		s.logger.WithFields(logrus.Fields{
			"file":     file.Name,
			"passages": passageCount,
		}).Info("Document indexed")
	}
	return nil
}

// indexDocument 摄取单个文档：加载→分块→标注→嵌入→入库
func (s *IngestService) indexDocument(ctx context.Context, file storage.FileInfo, run *models.IngestRun) (int, error) {
	record := &models.Document{
		ID:          uuid.New().String(),
		FileName:    file.Name,
		FileType:    file.MimeType,
		FileSize:    file.Size,
		Status:      models.DocStatusPending,
		IngestRunID: run.ID,
	}
	s.recordDocument(record)

	localPath, err := s.source.Fetch(ctx, file.Name)
	if err != nil {
		s.recordDocumentStatus(record, models.DocStatusSkipped, err)
		return 0, fmt.Errorf("%w: %v", document.ErrUnreadableDocument, err)
	}

	loader, err := document.LoaderFactory(localPath)
	if err != nil {
		s.recordDocumentStatus(record, models.DocStatusSkipped, err)
		return 0, err
	}

	pages, err := loader.Load(localPath)
	if err != nil {
		s.recordDocumentStatus(record, models.DocStatusSkipped, err)
		return 0, err
	}
	record.PageCount = len(pages)

	chunks, err := s.chunker.Chunk(pages)
	if err != nil {
		s.recordDocumentStatus(record, models.DocStatusSkipped, err)
		return 0, fmt.Errorf("%w: %v", document.ErrUnreadableDocument, err)
	}
	chunks = s.tagger.Tag(chunks, file.Name)

	if len(chunks) == 0 {
		// 文档没有可索引的文本
		s.recordDocumentStatus(record, models.DocStatusIndexed, nil)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.batch.Process(ctx, texts)
	if err != nil {
		s.recordDocumentStatus(record, models.DocStatusFailed, err)
		return 0, fmt.Errorf("embedding failed: %w", err)
	}

	passages := make([]vectordb.Passage, len(chunks))
	now := time.Now()
	for i, chunk := range chunks {
		passages[i] = vectordb.Passage{
			ID:        uuid.New().String(),
			Source:    chunk.Source,
			Page:      chunk.Page,
			Section:   chunk.Section,
			Text:      chunk.Text,
			Vector:    vectors[i],
			CreatedAt: now,
		}
	}

	if err := s.vectors.AddBatch(passages); err != nil {
		s.recordDocumentStatus(record, models.DocStatusFailed, err)
		return 0, fmt.Errorf("failed to persist passages: %w", err)
	}

	record.PassageCount = len(passages)
	s.recordDocumentStatus(record, models.DocStatusIndexed, nil)

	return len(passages), nil
}

// recordRunStart 写入摄取轮次开始记录，台账不可用时只记日志
func (s *IngestService) recordRunStart(run *models.IngestRun) {
	if s.ledger == nil {
		return
	}
	run.State = string(StateScanning)
	if err := s.ledger.CreateRun(run); err != nil {
		s.logger.WithError(err).Warn("Failed to record ingest run start")
	}
}

// recordRunFinish 写入摄取轮次结束记录
func (s *IngestService) recordRunFinish(run *models.IngestRun) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.FinishRun(run); err != nil {
		s.logger.WithError(err).Warn("Failed to record ingest run finish")
	}
}

// recordDocument 写入文档台账记录
func (s *IngestService) recordDocument(record *models.Document) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Create(record); err != nil {
		s.logger.WithError(err).Warn("Failed to record document")
	}
}

// recordDocumentStatus 更新文档台账状态
func (s *IngestService) recordDocumentStatus(record *models.Document, status models.DocumentStatus, cause error) {
	if s.ledger == nil {
		return
	}

	record.Status = status
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	if err := s.ledger.Update(record); err != nil {
		s.logger.WithError(err).Warn("Failed to update document record")
		return
	}
	if err := s.ledger.UpdateStatus(record.ID, status, errMsg); err != nil {
		s.logger.WithError(err).Warn("Failed to update document status")
	}
}
