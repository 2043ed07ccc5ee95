package vectordb

import (
	"errors"
	"time"
)

// 常用错误定义
var (
	ErrPassageNotFound  = errors.New("passage not found")
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
	// ErrIndexUnavailable 向量存储无法打开或读取
	// 摄取阶段遇到该错误会中止本轮摄取；查询阶段表现为"服务未就绪"
	ErrIndexUnavailable = errors.New("vector index unavailable")
)

// Passage 检索的基本单元
// 一段带出处元数据的文档文本及其向量表示
type Passage struct {
	ID        string    `json:"id"`         // 唯一标识符
	Source    string    `json:"source"`     // 所属文档的文件名
	Page      int       `json:"page"`       // 段落首字符所在页码（1起始）
	Section   string    `json:"section"`    // 章节标签（启发式推断）
	Text      string    `json:"text"`       // 原始文本内容
	Vector    []float32 `json:"vector"`     // 向量表示
	CreatedAt time.Time `json:"created_at"` // 创建时间
}

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
	// Euclidean 欧几里得距离
	Euclidean DistanceType = "l2"
)

// SearchResult 搜索结果
type SearchResult struct {
	Passage  Passage // 命中的段落
	Score    float32 // 相似度得分
	Distance float32 // 计算的距离
}

// SearchFilter 搜索过滤条件
type SearchFilter struct {
	MinScore   float32 // 最小相似度分数
	MaxResults int     // 最大返回结果数
}

// DefaultSearchFilter 返回默认的搜索过滤器
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		MinScore:   0.0,
		MaxResults: 5,
	}
}

// Repository 向量存储仓库接口
// 持久化段落及其向量，支持最近邻检索。
// 进程启动后索引是先写后读的：摄取完成前不对外提供检索，
// 摄取完成后所有方法都必须支持并发只读访问。
type Repository interface {
	// Add 添加单个段落
	Add(p Passage) error

	// AddBatch 批量添加段落
	AddBatch(ps []Passage) error

	// Search 相似度搜索，按得分降序返回，不改变已持久化状态
	Search(vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Passages 按插入顺序返回所有已持久化的段落
	// 词法索引据此重建，保证两种检索策略基于完全相同的语料快照
	Passages() ([]Passage, error)

	// Count 获取已持久化的段落总数，摄取编排器的幂等检查依赖该值
	Count() (int, error)

	// Reset 清空所有已持久化内容（强制重建模式使用）
	Reset() error

	// GetDimension 返回向量维数
	GetDimension() int

	// Close 关闭存储
	Close() error
}

// Config 向量存储配置
type Config struct {
	Type              string       // 存储类型，如 "memory", "faiss"
	Path              string       // 存储文件路径
	Dimension         int          // 向量维度
	DistanceType      DistanceType // 距离计算类型
	CreateIfNotExists bool         // 如果不存在是否创建
	InMemory          bool         // 是否仅在内存中运行
}

// Factory 向量存储工厂函数类型
type Factory func(config Config) (Repository, error)

// RepositoryRegistry 注册可用的向量存储实现
var RepositoryRegistry = map[string]Factory{}

// RegisterRepository 注册向量存储工厂函数
func RegisterRepository(name string, factory Factory) {
	RepositoryRegistry[name] = factory
}

// NewRepository 根据配置创建向量存储实例
func NewRepository(config Config) (Repository, error) {
	factory, ok := RepositoryRegistry[config.Type]
	if !ok {
		// 默认使用内存实现
		factory = NewMemoryRepository
	}
	return factory(config)
}
