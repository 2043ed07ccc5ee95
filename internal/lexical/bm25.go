// Package lexical 实现基于词项统计的内存检索索引。
// 索引从向量存储读回的段落集合构建，与向量索引共享同一份语料快照，
// 并完整保留每个段落的出处元数据。构建完成后索引是只读的，
// 可以被任意多个查询并发访问。
package lexical

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/fyerfyer/corpus-QA-engine/internal/vectordb"
)

// BM25参数，取常用默认值
const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// Index 词法检索索引
// 使用BM25（IDF加权的词项匹配打分）对段落排序
type Index struct {
	passages []vectordb.Passage // 按语料插入顺序保存
	termFreq []map[string]int   // 每个段落的词频表
	docLen   []int              // 每个段落的词数
	idf      map[string]float64 // 词项的逆文档频率
	avgLen   float64            // 平均段落词数
	k1       float64
	b        float64
}

// NewIndex 从段落集合构建词法索引
// passages的顺序即语料插入顺序，打分相同时按该顺序决定先后
func NewIndex(passages []vectordb.Passage) *Index {
	idx := &Index{
		passages: passages,
		termFreq: make([]map[string]int, len(passages)),
		docLen:   make([]int, len(passages)),
		idf:      make(map[string]float64),
		k1:       defaultK1,
		b:        defaultB,
	}

	// 统计词频和文档频率
	df := make(map[string]int)
	totalLen := 0
	for i, p := range passages {
		tokens := tokenize(p.Text)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		idx.termFreq[i] = tf
		idx.docLen[i] = len(tokens)
		totalLen += len(tokens)
		for term := range tf {
			df[term]++
		}
	}

	if len(passages) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(passages))
	}

	// 平滑IDF，保证低频词不会出现负权重
	n := float64(len(passages))
	for term, freq := range df {
		idx.idf[term] = math.Log(1 + (n-float64(freq)+0.5)/(float64(freq)+0.5))
	}

	return idx
}

// Count 返回已索引的段落数量
func (idx *Index) Count() int {
	return len(idx.passages)
}

// Search 返回与查询词项重叠得分最高的k个段落
// 得分相同的段落按语料插入顺序排列；
// 语料中没有任何词项与查询重叠时返回空结果，不报错
func (idx *Index) Search(query string, k int) []vectordb.SearchResult {
	if k <= 0 || len(idx.passages) == 0 {
		return []vectordb.SearchResult{}
	}

	queryTerms := tokenize(query)

	type scored struct {
		pos   int
		score float64
	}
	var candidates []scored
	for i := range idx.passages {
		score := idx.score(queryTerms, i)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, scored{pos: i, score: score})
	}

	// 稳定排序保留插入顺序作为并列时的次序
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]vectordb.SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = vectordb.SearchResult{
			Passage: idx.passages[c.pos],
			Score:   float32(c.score),
		}
	}
	return results
}

// score 计算查询词项对单个段落的BM25得分
func (idx *Index) score(queryTerms []string, pos int) float64 {
	tf := idx.termFreq[pos]
	docLen := float64(idx.docLen[pos])

	var total float64
	for _, term := range queryTerms {
		freq, ok := tf[term]
		if !ok {
			continue
		}
		f := float64(freq)
		norm := idx.k1 * (1 - idx.b + idx.b*docLen/idx.avgLen)
		total += idx.idf[term] * (f * (idx.k1 + 1)) / (f + norm)
	}
	return total
}

// tokenize 将文本切分为小写词项
func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}
