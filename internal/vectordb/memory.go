package vectordb

import (
	"sync"
	"time"
)

// MemoryRepository 内存向量存储实现
// 不做持久化，进程退出后内容即丢失；主要用于测试和FAISS不可用时的降级
type MemoryRepository struct {
	mu           sync.RWMutex
	passages     []Passage // 按插入顺序保存
	dimension    int
	distanceType DistanceType
}

// NewMemoryRepository 创建内存向量存储
func NewMemoryRepository(config Config) (Repository, error) {
	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	return &MemoryRepository{
		passages:     make([]Passage, 0),
		dimension:    config.Dimension,
		distanceType: distType,
	}, nil
}

// Add 添加单个段落
func (r *MemoryRepository) Add(p Passage) error {
	if err := ValidateVector(p.Vector, r.dimension); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.passages = append(r.passages, p)
	return nil
}

// AddBatch 批量添加段落
func (r *MemoryRepository) AddBatch(ps []Passage) error {
	for i := range ps {
		if err := ValidateVector(ps[i].Vector, r.dimension); err != nil {
			return err
		}
		if ps[i].CreatedAt.IsZero() {
			ps[i].CreatedAt = time.Now()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.passages = append(r.passages, ps...)
	return nil
}

// Search 暴力扫描所有段落计算相似度
func (r *MemoryRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	k := filter.MaxResults
	if k <= 0 {
		k = DefaultSearchFilter().MaxResults
	}

	results := make([]SearchResult, 0, len(r.passages))
	for _, p := range r.passages {
		dist, err := ComputeDistance(vector, p.Vector, r.distanceType)
		if err != nil {
			return nil, err
		}
		score := DistanceToScore(dist, r.distanceType)
		if score < filter.MinScore {
			continue
		}
		results = append(results, SearchResult{
			Passage:  p,
			Score:    score,
			Distance: dist,
		})
	}

	SortSearchResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Passages 按插入顺序返回所有段落
func (r *MemoryRepository) Passages() ([]Passage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Passage, len(r.passages))
	copy(out, r.passages)
	return out, nil
}

// Count 获取段落总数
func (r *MemoryRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.passages), nil
}

// Reset 清空所有段落
func (r *MemoryRepository) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passages = r.passages[:0]
	return nil
}

// GetDimension 返回向量维数
func (r *MemoryRepository) GetDimension() int {
	return r.dimension
}

// Close 关闭存储（内存实现无事可做）
func (r *MemoryRepository) Close() error {
	return nil
}

func init() {
	RegisterRepository("memory", NewMemoryRepository)
}
