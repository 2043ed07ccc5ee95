//go:build cgo

package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissRepository 基于Faiss的持久化向量存储
// 索引本体写入indexPath，段落元数据写入旁路JSON文件，
// 重新打开同一路径即可恢复之前的全部内容
type FaissRepository struct {
	mu           sync.RWMutex
	index        faiss.Index
	passages     []Passage // 按插入顺序保存，下标与faiss内部位置一一对应
	indexPath    string
	metaPath     string
	dimension    int
	distanceType DistanceType
	saveOnClose  bool
}

// NewFaissRepository 创建或重新打开Faiss向量存储
func NewFaissRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	if config.Path != "" && !config.InMemory {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
			return nil, fmt.Errorf("%w: failed to create directory: %v", ErrIndexUnavailable, err)
		}
	}

	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	indexPath := config.Path
	metaPath := ""
	if indexPath != "" {
		metaPath = indexPath + ".meta.json"
	}

	repo := &FaissRepository{
		passages:     make([]Passage, 0),
		indexPath:    indexPath,
		metaPath:     metaPath,
		dimension:    config.Dimension,
		distanceType: distType,
		saveOnClose:  true,
	}

	var index faiss.Index
	var err error

	// 尝试从文件恢复已有索引
	if indexPath != "" && !config.InMemory && fileExists(indexPath) {
		index, err = faiss.ReadIndex(indexPath, 0)
		if err != nil {
			if config.CreateIfNotExists {
				index, err = createFaissIndex(config.Dimension, distType)
				if err != nil {
					return nil, fmt.Errorf("%w: failed to create faiss index: %v", ErrIndexUnavailable, err)
				}
			} else {
				return nil, fmt.Errorf("%w: failed to read index file: %v", ErrIndexUnavailable, err)
			}
		} else {
			if err := repo.loadMetadata(metaPath); err != nil {
				return nil, fmt.Errorf("%w: failed to load passage metadata: %v", ErrIndexUnavailable, err)
			}
		}
	} else {
		index, err = createFaissIndex(config.Dimension, distType)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create faiss index: %v", ErrIndexUnavailable, err)
		}
	}

	repo.index = index
	return repo, nil
}

// createFaissIndex 创建Faiss平面索引
func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	var metric int
	switch distType {
	case Cosine, DotProduct:
		metric = faiss.MetricInnerProduct
	case Euclidean:
		metric = faiss.MetricL2
	default:
		metric = faiss.MetricL2
	}
	return faiss.NewIndexFlat(dimension, metric)
}

// Add 添加单个段落
func (r *FaissRepository) Add(p Passage) error {
	return r.AddBatch([]Passage{p})
}

// AddBatch 批量添加段落
func (r *FaissRepository) AddBatch(ps []Passage) error {
	if len(ps) == 0 {
		return nil
	}
	for i := range ps {
		if err := ValidateVector(ps[i].Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for passage %s: %w", ps[i].ID, err)
		}
		if r.distanceType == Cosine {
			ps[i].Vector = normalizeVector(ps[i].Vector)
		}
		if ps[i].CreatedAt.IsZero() {
			ps[i].CreatedAt = time.Now()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range ps {
		if err := r.index.Add(ps[i].Vector); err != nil {
			return fmt.Errorf("failed to add vector to index: %v", err)
		}
		r.passages = append(r.passages, ps[i])
	}

	return r.saveIndex()
}

// Search 相似度搜索
func (r *FaissRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distanceType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.passages) == 0 {
		return []SearchResult{}, nil
	}

	k := filter.MaxResults
	if k <= 0 {
		k = DefaultSearchFilter().MaxResults
	}
	queryLimit := k
	if queryLimit > len(r.passages) {
		queryLimit = len(r.passages)
	}

	distances, indices, err := r.index.Search(vector, int64(queryLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %v", err)
	}

	var results []SearchResult
	for i := 0; i < len(indices); i++ {
		idx := indices[i]
		if idx < 0 || int(idx) >= len(r.passages) {
			continue
		}
		dist := distances[i]
		// 内积度量在归一化向量上返回的是余弦相似度，先换算回余弦距离
		if r.distanceType == Cosine {
			dist = 1 - dist
		}
		score := DistanceToScore(dist, r.distanceType)
		if score < filter.MinScore {
			continue
		}
		results = append(results, SearchResult{
			Passage:  r.passages[idx],
			Score:    score,
			Distance: dist,
		})
		if len(results) >= k {
			break
		}
	}

	SortSearchResults(results)
	return results, nil
}

// Passages 按插入顺序返回所有段落
func (r *FaissRepository) Passages() ([]Passage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Passage, len(r.passages))
	copy(out, r.passages)
	return out, nil
}

// Count 获取段落总数
func (r *FaissRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.passages), nil
}

// Reset 清空索引和所有已持久化的段落
func (r *FaissRepository) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := createFaissIndex(r.dimension, r.distanceType)
	if err != nil {
		return fmt.Errorf("failed to recreate faiss index: %v", err)
	}
	r.index = index
	r.passages = r.passages[:0]

	// 删除旧的持久化文件
	if r.indexPath != "" {
		if err := os.Remove(r.indexPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove index file: %v", err)
		}
	}
	if r.metaPath != "" {
		if err := os.Remove(r.metaPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove metadata file: %v", err)
		}
	}
	return nil
}

// GetDimension 返回向量维数
func (r *FaissRepository) GetDimension() int {
	return r.dimension
}

// Close 关闭存储
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveOnClose && r.indexPath != "" {
		if err := r.saveIndex(); err != nil {
			return fmt.Errorf("failed to save index on close: %v", err)
		}
	}
	return nil
}

// saveIndex 保存索引和段落数据到文件
// 调用方必须已持有写锁
func (r *FaissRepository) saveIndex() error {
	if r.indexPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.indexPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}
	if err := faiss.WriteIndex(r.index, r.indexPath); err != nil {
		return fmt.Errorf("failed to write index to file: %v", err)
	}
	return r.saveMetadata()
}

// saveMetadata 保存段落元数据到旁路文件
func (r *FaissRepository) saveMetadata() error {
	if r.metaPath == "" {
		return nil
	}
	metadata := struct {
		Passages []Passage `json:"passages"`
	}{
		Passages: r.passages,
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %v", err)
	}
	if err := os.WriteFile(r.metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %v", err)
	}
	return nil
}

// loadMetadata 从旁路文件恢复段落元数据
func (r *FaissRepository) loadMetadata(path string) error {
	if path == "" || !fileExists(path) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read metadata file: %v", err)
	}
	metadata := struct {
		Passages []Passage `json:"passages"`
	}{}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %v", err)
	}
	r.passages = metadata.Passages
	return nil
}

// fileExists 检查文件是否存在
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func init() {
	RegisterRepository("faiss", NewFaissRepository)
}
