// Package retriever 实现混合检索。
// 向量检索和词法检索各自独立执行，结果按固定策略合并后交给上层。
package retriever

import (
	"context"
	"fmt"
	"sort"

	"github.com/fyerfyer/corpus-QA-engine/internal/embedding"
	"github.com/fyerfyer/corpus-QA-engine/internal/lexical"
	"github.com/fyerfyer/corpus-QA-engine/internal/vectordb"
)

// FusionMode 结果合并策略
type FusionMode string

const (
	// FusionConcat 向量结果在前、词法结果在后直接拼接
	// 不去重不重排，两路都命中的段落会出现两次
	FusionConcat FusionMode = "concat"
	// FusionRRF 倒数排名融合，按融合得分重排并去重
	FusionRRF FusionMode = "rrf"
)

// rrfRankConstant RRF的平滑常数，取论文的常用值
const rrfRankConstant = 60

// Config 混合检索配置
type Config struct {
	TopK   int        // 每路检索的返回数量
	Fusion FusionMode // 合并策略
}

// DefaultConfig 返回默认混合检索配置
func DefaultConfig() Config {
	return Config{
		TopK:   5,
		Fusion: FusionConcat,
	}
}

// Ensemble 混合检索器
// 构建完成后是只读的，可以被任意多个查询并发调用
type Ensemble struct {
	embedder embedding.Client   // 查询向量化客户端
	vectors  vectordb.Repository // 向量存储
	lexical  *lexical.Index      // 词法索引
	cfg      Config
}

// NewEnsemble 创建混合检索器
func NewEnsemble(embedder embedding.Client, vectors vectordb.Repository, lexicalIndex *lexical.Index, cfg Config) *Ensemble {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.Fusion == "" {
		cfg.Fusion = FusionConcat
	}

	return &Ensemble{
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexicalIndex,
		cfg:      cfg,
	}
}

// Retrieve 对查询执行两路检索并合并结果
// 任意一路没有命中不算错误，两路都为空时返回空序列
func (e *Ensemble) Retrieve(ctx context.Context, query string) ([]vectordb.SearchResult, error) {
	vectorResults, err := e.searchVectors(ctx, query)
	if err != nil {
		return nil, err
	}

	lexicalResults := e.lexical.Search(query, e.cfg.TopK)

	if e.cfg.Fusion == FusionRRF {
		return fuseRRF(vectorResults, lexicalResults), nil
	}
	return fuseConcat(vectorResults, lexicalResults), nil
}

// searchVectors 执行向量检索
func (e *Ensemble) searchVectors(ctx context.Context, query string) ([]vectordb.SearchResult, error) {
	queryVector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	filter := vectordb.SearchFilter{MaxResults: e.cfg.TopK}
	results, err := e.vectors.Search(queryVector, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return results, nil
}

// fuseConcat 向量结果在前拼接两路结果，保留各自内部顺序
func fuseConcat(vectorResults, lexicalResults []vectordb.SearchResult) []vectordb.SearchResult {
	merged := make([]vectordb.SearchResult, 0, len(vectorResults)+len(lexicalResults))
	merged = append(merged, vectorResults...)
	merged = append(merged, lexicalResults...)
	return merged
}

// fuseRRF 倒数排名融合
// 每路内的排名r贡献1/(c+r)，同一段落在两路的贡献相加后按总分重排
func fuseRRF(vectorResults, lexicalResults []vectordb.SearchResult) []vectordb.SearchResult {
	type fused struct {
		result vectordb.SearchResult
		score  float64
		order  int
	}

	byID := make(map[string]*fused)
	order := 0
	accumulate := func(results []vectordb.SearchResult) {
		for rank, r := range results {
			contribution := 1.0 / float64(rrfRankConstant+rank+1)
			if f, ok := byID[r.Passage.ID]; ok {
				f.score += contribution
				continue
			}
			byID[r.Passage.ID] = &fused{result: r, score: contribution, order: order}
			order++
		}
	}
	accumulate(vectorResults)
	accumulate(lexicalResults)

	candidates := make([]*fused, 0, len(byID))
	for _, f := range byID {
		candidates = append(candidates, f)
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].order < candidates[b].order
	})

	merged := make([]vectordb.SearchResult, len(candidates))
	for i, f := range candidates {
		merged[i] = f.result
		merged[i].Score = float32(f.score)
	}
	return merged
}
