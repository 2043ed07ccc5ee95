package services

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/corpus-QA-engine/internal/vectordb"
)

// RetrievalEngine 检索引擎
// 摄取完成后对外提供的只读检索句柄。
// 检索是CPU密集操作，通过工作池限制并发执行数量，
// 池满时后续请求排队等待
type RetrievalEngine struct {
	ingest *IngestService
	pool   *ants.Pool
	logger *logrus.Logger
}

// retrieveResult 工作池任务的返回值
type retrieveResult struct {
	results []vectordb.SearchResult
	err     error
}

// NewRetrievalEngine 创建检索引擎
// poolSize限制同时执行的检索数量
func NewRetrievalEngine(ingest *IngestService, poolSize int, logger *logrus.Logger) (*RetrievalEngine, error) {
	if poolSize <= 0 {
		poolSize = 8
	}
	if logger == nil {
		logger = logrus.New()
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval pool: %v", err)
	}

	return &RetrievalEngine{
		ingest: ingest,
		pool:   pool,
		logger: logger,
	}, nil
}

// IsReady 检索是否就绪
func (e *RetrievalEngine) IsReady() bool {
	return e.ingest.IsReady()
}

// State 返回底层摄取状态机的状态
func (e *RetrievalEngine) State() State {
	return e.ingest.State()
}

// Retrieve 对查询执行混合检索
// 未就绪时返回空序列而不是错误，调用方应先通过IsReady判断；
// 没有相关段落同样返回空序列
func (e *RetrievalEngine) Retrieve(ctx context.Context, query string) ([]vectordb.SearchResult, error) {
	ensemble := e.ingest.Ensemble()
	if ensemble == nil {
		return []vectordb.SearchResult{}, nil
	}

	done := make(chan retrieveResult, 1)
	err := e.pool.Submit(func() {
		results, err := ensemble.Retrieve(ctx, query)
		done <- retrieveResult{results: results, err: err}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit retrieval task: %v", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.results == nil {
			return []vectordb.SearchResult{}, nil
		}
		return r.results, nil
	}
}

// Close 释放检索工作池
func (e *RetrievalEngine) Close() {
	e.pool.Release()
}
