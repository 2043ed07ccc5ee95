package embedding

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// BatchProcessor 批处理器
// 将大量文本分批并行嵌入，结果保持输入顺序。
// 并行度由工作池大小限制，避免把嵌入服务打满
type BatchProcessor struct {
	client     Client
	batchSize  int
	maxWorkers int
}

// NewBatchProcessor 创建新的批处理器
func NewBatchProcessor(client Client, batchSize int, maxWorkers int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 16
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	return &BatchProcessor{
		client:     client,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
	}
}

// Process 并行嵌入一批文本
// 任意一个批次失败整体失败，调用方不应使用部分结果
func (p *BatchProcessor) Process(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	type batch struct {
		start int
		texts []string
	}
	var batches []batch
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: start, texts: texts[start:end]})
	}

	pool, err := ants.NewPool(p.maxWorkers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	results := make([][]float32, len(texts))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var processErr error

	for _, b := range batches {
		b := b
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			mu.Lock()
			failed := processErr != nil
			mu.Unlock()
			if failed {
				return
			}

			vectors, err := p.client.EmbedBatch(ctx, b.texts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if processErr == nil {
					processErr = err
				}
				return
			}
			for i, v := range vectors {
				results[b.start+i] = v
			}
		})
		if submitErr != nil {
			wg.Done()
			return nil, submitErr
		}
	}

	wg.Wait()
	if processErr != nil {
		return nil, processErr
	}
	return results, nil
}
