package document

import (
	"fmt"
	"strings"
)

// Chunk 切分出的文本段落
// Page在切分阶段保持0起始，由Tagger统一转换为1起始后再对外暴露
type Chunk struct {
	Text    string // 段落文本内容
	Page    int    // 段落首字符所在的页码
	Index   int    // 段落在文档内的序号
	Source  string // 所属文档的文件名（由Tagger填充）
	Section string // 章节标签（由Tagger填充）
}

// ChunkerConfig 切分器配置
type ChunkerConfig struct {
	ChunkSize    int // 分块目标大小（按字符数）
	ChunkOverlap int // 相邻分块的重叠大小（字符数）
}

// DefaultChunkerConfig 返回默认切分器配置
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// Chunker 文本切分器
// 将单个文档的页面文本流切分为定长、定重叠的段落序列。
// 切分是确定性的：相同输入总是产生相同的段落序列。
// 步长严格固定，不在词边界回退，也不修剪空白，
// 保证按序拼接并去除重叠后能精确还原原始文本流。
type Chunker struct {
	config ChunkerConfig
}

// NewChunker 创建新的文本切分器
func NewChunker(config ChunkerConfig) (*Chunker, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", config.ChunkOverlap)
	}
	return &Chunker{config: config}, nil
}

// Chunk 将一个文档的页面序列切分为段落序列
// 页面在文档内部用换行符连接为连续文本流后切分，
// 绝不跨文档拼接。空白页不产生任何段落。
func (c *Chunker) Chunk(pages []Page) ([]Chunk, error) {
	// 过滤空白页，记录每页在文本流中的起始偏移
	type pageSpan struct {
		start int // 该页首字符在文本流中的偏移（按rune计）
		page  int // 页码（0起始）
	}
	var spans []pageSpan
	var stream []rune

	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if len(stream) > 0 {
			stream = append(stream, '\n')
		}
		spans = append(spans, pageSpan{start: len(stream), page: p.Number})
		stream = append(stream, []rune(p.Text)...)
	}

	if len(stream) == 0 {
		return []Chunk{}, nil
	}

	// 给定偏移查找所在页：取起始偏移不大于该位置的最后一页
	pageAt := func(offset int) int {
		page := spans[0].page
		for _, s := range spans {
			if s.start > offset {
				break
			}
			page = s.page
		}
		return page
	}

	stride := c.config.ChunkSize - c.config.ChunkOverlap

	var chunks []Chunk
	for i := 0; i < len(stream); i += stride {
		end := i + c.config.ChunkSize
		if end > len(stream) {
			end = len(stream)
		}

		chunks = append(chunks, Chunk{
			Text:  string(stream[i:end]),
			Page:  pageAt(i),
			Index: len(chunks),
		})

		if end == len(stream) {
			break
		}
	}

	return chunks, nil
}
