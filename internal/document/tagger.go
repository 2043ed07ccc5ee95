package document

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSection 无法从文本推断章节时使用的默认标签
	DefaultSection = "General Section"
	// 首行短于该长度才会被当作章节标签
	sectionMaxLength = 50
	// 首行至少要超过该长度才有意义
	sectionMinLength = 3
)

// Tagger 元数据标注器
// 为切分出的段落补全来源文件名和章节标签，并把页码转换为1起始。
// 章节标签只是启发式推断，不保证是文档的真实标题。
type Tagger struct{}

// NewTagger 创建新的元数据标注器
func NewTagger() *Tagger {
	return &Tagger{}
}

// Tag 为段落序列填充来源和章节元数据
// source为段落所属文档的文件名；页码在此处从0起始转换为1起始
func (t *Tagger) Tag(chunks []Chunk, source string) []Chunk {
	tagged := make([]Chunk, len(chunks))
	for i, chunk := range chunks {
		chunk.Source = source
		chunk.Page = chunk.Page + 1
		chunk.Section = deriveSection(chunk.Text)
		tagged[i] = chunk
	}
	return tagged
}

// deriveSection 从段落首行推断章节标签
// 首行足够短（可能是标题）且非琐碎时直接使用，否则回退到默认标签
func deriveSection(text string) string {
	firstLine := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine = text[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)

	length := utf8.RuneCountInString(firstLine)
	if length > sectionMinLength && length < sectionMaxLength {
		return firstLine
	}
	return DefaultSection
}
