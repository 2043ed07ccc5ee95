package document

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerConfigValidation(t *testing.T) {
	_, err := NewChunker(ChunkerConfig{ChunkSize: 0, ChunkOverlap: 0})
	assert.Error(t, err)

	_, err = NewChunker(ChunkerConfig{ChunkSize: 100, ChunkOverlap: -1})
	assert.Error(t, err)

	// 重叠必须小于分块大小，否则步长为零
	_, err = NewChunker(ChunkerConfig{ChunkSize: 100, ChunkOverlap: 100})
	assert.Error(t, err)

	_, err = NewChunker(DefaultChunkerConfig())
	assert.NoError(t, err)
}

func TestChunkerShortDocument(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkerConfig())
	require.NoError(t, err)

	chunks, err := chunker.Chunk([]Page{{Number: 0, Text: "short text"}})
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Page)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestChunkerEmptyPages(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkerConfig())
	require.NoError(t, err)

	chunks, err := chunker.Chunk([]Page{
		{Number: 0, Text: "   "},
		{Number: 1, Text: "\n\t\n"},
	})
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = chunker.Chunk(nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkerFixedStride(t *testing.T) {
	chunker, err := NewChunker(ChunkerConfig{ChunkSize: 10, ChunkOverlap: 3})
	require.NoError(t, err)

	text := "abcdefghijklmnopqrstuvwxyz"
	chunks, err := chunker.Chunk([]Page{{Number: 0, Text: text}})
	require.NoError(t, err)

	// 步长7：偏移0、7、14、21
	require.Len(t, chunks, 4)
	assert.Equal(t, "abcdefghij", chunks[0].Text)
	assert.Equal(t, "hijklmnopq", chunks[1].Text)
	assert.Equal(t, "opqrstuvwx", chunks[2].Text)
	assert.Equal(t, "vwxyz", chunks[3].Text)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
	}
}

func TestChunkerReconstruction(t *testing.T) {
	// 按序拼接并去除重叠后必须精确还原原始文本流
	cfg := ChunkerConfig{ChunkSize: 50, ChunkOverlap: 10}
	chunker, err := NewChunker(cfg)
	require.NoError(t, err)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	chunks, err := chunker.Chunk([]Page{{Number: 0, Text: text}})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var rebuilt []rune
	for i, chunk := range chunks {
		runes := []rune(chunk.Text)
		if i == 0 {
			rebuilt = append(rebuilt, runes...)
			continue
		}
		rebuilt = append(rebuilt, runes[cfg.ChunkOverlap:]...)
	}
	assert.Equal(t, text, string(rebuilt))
}

func TestChunkerMultiByteRunes(t *testing.T) {
	// 大小按rune计而不是字节，多字节字符不会被切断
	chunker, err := NewChunker(ChunkerConfig{ChunkSize: 4, ChunkOverlap: 1})
	require.NoError(t, err)

	chunks, err := chunker.Chunk([]Page{{Number: 0, Text: "你好世界再见了吗"}})
	require.NoError(t, err)

	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk.Text))
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk.Text), 4)
	}
	assert.Equal(t, "你好世界", chunks[0].Text)
}

func TestChunkerPageAttribution(t *testing.T) {
	// 段落页码取其首字符所在的页
	chunker, err := NewChunker(ChunkerConfig{ChunkSize: 12, ChunkOverlap: 0})
	require.NoError(t, err)

	chunks, err := chunker.Chunk([]Page{
		{Number: 0, Text: "aaaaaaaaaa"}, // 10个字符
		{Number: 1, Text: "bbbbbbbbbb"},
	})
	require.NoError(t, err)

	// 页面用换行符连接：总流21个字符，块1从偏移0（页0），块2从偏移12（页1）
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Page)
	assert.Equal(t, 1, chunks[1].Page)
}

func TestChunkerSkipsBlankPagesKeepsNumbers(t *testing.T) {
	// 空白页被过滤，后续页保留自己的物理页码
	chunker, err := NewChunker(ChunkerConfig{ChunkSize: 5, ChunkOverlap: 0})
	require.NoError(t, err)

	chunks, err := chunker.Chunk([]Page{
		{Number: 0, Text: "  "},
		{Number: 1, Text: "hello"},
	})
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Page)
}
