package retriever

import (
	"context"
	"testing"

	"github.com/fyerfyer/corpus-QA-engine/internal/lexical"
	"github.com/fyerfyer/corpus-QA-engine/internal/vectordb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder 测试用的嵌入客户端
// 根据查询词项命中情况返回固定方向的向量
type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = s.vector
	}
	return vectors, nil
}

func (s *stubEmbedder) Name() string {
	return "stub-embedder"
}

func setupIndices(t *testing.T) (vectordb.Repository, *lexical.Index) {
	t.Helper()

	passages := []vectordb.Passage{
		{ID: "p1", Source: "handbook.pdf", Page: 1, Section: "Leave Policy",
			Text: "Leave Policy: employees get 20 days of annual leave.", Vector: []float32{1, 0, 0}},
		{ID: "p2", Source: "handbook.pdf", Page: 2, Section: "Dress Code",
			Text: "The dress code is business casual.", Vector: []float32{0, 1, 0}},
		{ID: "p3", Source: "conduct.pdf", Page: 1, Section: "Conduct",
			Text: "Employees must follow the code of conduct.", Vector: []float32{0, 0, 1}},
	}

	repo, err := vectordb.NewMemoryRepository(vectordb.Config{
		Type:         "memory",
		Dimension:    3,
		DistanceType: vectordb.Cosine,
	})
	require.NoError(t, err)
	require.NoError(t, repo.AddBatch(passages))

	return repo, lexical.NewIndex(passages)
}

func TestEnsembleConcat(t *testing.T) {
	repo, lexicalIndex := setupIndices(t)

	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}
	ensemble := NewEnsemble(embedder, repo, lexicalIndex, DefaultConfig())

	results, err := ensemble.Retrieve(context.Background(), "how many leave days")
	require.NoError(t, err)

	// 拼接不去重：结果数等于两路结果数之和
	vectorResults, err := repo.Search([]float32{1, 0, 0}, vectordb.SearchFilter{MaxResults: 5})
	require.NoError(t, err)
	lexicalResults := lexicalIndex.Search("how many leave days", 5)
	assert.Len(t, results, len(vectorResults)+len(lexicalResults))

	// 向量结果在前
	assert.Equal(t, vectorResults[0].Passage.ID, results[0].Passage.ID)

	// 目标段落至少出现一次，且出处元数据完整
	var found bool
	for _, r := range results {
		if r.Passage.ID == "p1" {
			found = true
			assert.Equal(t, "handbook.pdf", r.Passage.Source)
			assert.Equal(t, 1, r.Passage.Page)
			assert.Equal(t, "Leave Policy", r.Passage.Section)
		}
	}
	assert.True(t, found)
}

func TestEnsembleDuplicatesPreserved(t *testing.T) {
	repo, lexicalIndex := setupIndices(t)

	// 向量检索和词法检索都会命中p1
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}
	ensemble := NewEnsemble(embedder, repo, lexicalIndex, Config{TopK: 1, Fusion: FusionConcat})

	results, err := ensemble.Retrieve(context.Background(), "leave")
	require.NoError(t, err)

	// 两路都命中的段落出现两次
	count := 0
	for _, r := range results {
		if r.Passage.ID == "p1" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestEnsembleEmptyLexicalSide(t *testing.T) {
	repo, lexicalIndex := setupIndices(t)

	embedder := &stubEmbedder{vector: []float32{0, 1, 0}}
	ensemble := NewEnsemble(embedder, repo, lexicalIndex, DefaultConfig())

	// 查询词项与语料完全无重叠，词法侧为空，向量侧照常返回
	results, err := ensemble.Retrieve(context.Background(), "zzzz qqqq")
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	lexicalResults := lexicalIndex.Search("zzzz qqqq", 5)
	assert.Empty(t, lexicalResults)
}

func TestEnsembleEmptyCorpus(t *testing.T) {
	repo, err := vectordb.NewMemoryRepository(vectordb.Config{
		Type:         "memory",
		Dimension:    3,
		DistanceType: vectordb.Cosine,
	})
	require.NoError(t, err)

	ensemble := NewEnsemble(&stubEmbedder{vector: []float32{1, 0, 0}}, repo,
		lexical.NewIndex(nil), DefaultConfig())

	// 空语料返回空序列而不是错误
	results, err := ensemble.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEnsembleEmbedderError(t *testing.T) {
	repo, lexicalIndex := setupIndices(t)

	embedder := &stubEmbedder{err: assert.AnError}
	ensemble := NewEnsemble(embedder, repo, lexicalIndex, DefaultConfig())

	_, err := ensemble.Retrieve(context.Background(), "query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
}

func TestEnsembleRRF(t *testing.T) {
	repo, lexicalIndex := setupIndices(t)

	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}
	ensemble := NewEnsemble(embedder, repo, lexicalIndex, Config{TopK: 5, Fusion: FusionRRF})

	results, err := ensemble.Retrieve(context.Background(), "leave policy employees")
	require.NoError(t, err)

	// RRF模式下去重
	seen := make(map[string]bool)
	for _, r := range results {
		assert.False(t, seen[r.Passage.ID], "duplicate passage %s in rrf results", r.Passage.ID)
		seen[r.Passage.ID] = true
	}

	// 两路都命中的p1融合得分最高
	require.NotEmpty(t, results)
	assert.Equal(t, "p1", results[0].Passage.ID)
}
