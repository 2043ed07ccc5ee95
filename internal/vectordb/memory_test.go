package vectordb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryRepo(t *testing.T) Repository {
	t.Helper()
	repo, err := NewMemoryRepository(Config{
		Type:         "memory",
		Dimension:    3,
		DistanceType: Cosine,
	})
	require.NoError(t, err)
	return repo
}

func testPassage(id string, vector []float32) Passage {
	return Passage{
		ID:      id,
		Source:  "handbook.pdf",
		Page:    1,
		Section: "Leave Policy",
		Text:    "Employees get 20 days of annual leave.",
		Vector:  vector,
	}
}

func TestMemoryRepositoryAddAndCount(t *testing.T) {
	repo := newTestMemoryRepo(t)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, repo.Add(testPassage("p1", []float32{1, 0, 0})))
	require.NoError(t, repo.AddBatch([]Passage{
		testPassage("p2", []float32{0, 1, 0}),
		testPassage("p3", []float32{0, 0, 1}),
	}))

	count, err = repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMemoryRepositoryDimensionCheck(t *testing.T) {
	repo := newTestMemoryRepo(t)

	err := repo.Add(testPassage("p1", []float32{1, 0}))
	assert.ErrorIs(t, err, ErrInvalidDimension)

	err = repo.Add(testPassage("p2", nil))
	assert.ErrorIs(t, err, ErrEmptyVector)

	_, err = repo.Search([]float32{1, 0}, DefaultSearchFilter())
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestMemoryRepositorySearch(t *testing.T) {
	repo := newTestMemoryRepo(t)
	require.NoError(t, repo.AddBatch([]Passage{
		testPassage("p1", []float32{1, 0, 0}),
		testPassage("p2", []float32{0.9, 0.1, 0}),
		testPassage("p3", []float32{0, 0, 1}),
	}))

	results, err := repo.Search([]float32{1, 0, 0}, SearchFilter{MaxResults: 2})
	require.NoError(t, err)

	// 按相似度降序，p1完全对齐排第一
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].Passage.ID)
	assert.Equal(t, "p2", results[1].Passage.ID)
	assert.Greater(t, results[0].Score, results[1].Score)

	// 命中的段落带完整的出处元数据
	assert.Equal(t, "handbook.pdf", results[0].Passage.Source)
	assert.Equal(t, 1, results[0].Passage.Page)
	assert.Equal(t, "Leave Policy", results[0].Passage.Section)
}

func TestMemoryRepositorySearchMinScore(t *testing.T) {
	repo := newTestMemoryRepo(t)
	require.NoError(t, repo.AddBatch([]Passage{
		testPassage("p1", []float32{1, 0, 0}),
		testPassage("p2", []float32{0, 1, 0}), // 与查询正交，余弦得分为0
	}))

	results, err := repo.Search([]float32{1, 0, 0}, SearchFilter{MaxResults: 10, MinScore: 0.9})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].Passage.ID)
}

func TestMemoryRepositorySearchEmpty(t *testing.T) {
	repo := newTestMemoryRepo(t)

	results, err := repo.Search([]float32{1, 0, 0}, DefaultSearchFilter())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryRepositoryPassagesOrder(t *testing.T) {
	repo := newTestMemoryRepo(t)
	require.NoError(t, repo.AddBatch([]Passage{
		testPassage("p1", []float32{1, 0, 0}),
		testPassage("p2", []float32{0, 1, 0}),
	}))
	require.NoError(t, repo.Add(testPassage("p3", []float32{0, 0, 1})))

	// 按插入顺序返回，词法索引依赖这一点拿到相同的语料快照
	passages, err := repo.Passages()
	require.NoError(t, err)
	require.Len(t, passages, 3)
	assert.Equal(t, "p1", passages[0].ID)
	assert.Equal(t, "p2", passages[1].ID)
	assert.Equal(t, "p3", passages[2].ID)
}

func TestMemoryRepositoryReset(t *testing.T) {
	repo := newTestMemoryRepo(t)
	require.NoError(t, repo.Add(testPassage("p1", []float32{1, 0, 0})))

	require.NoError(t, repo.Reset())

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRepositoryFactory(t *testing.T) {
	repo, err := NewRepository(Config{Type: "memory", Dimension: 3})
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)

	// 未注册的类型退回内存实现
	repo, err = NewRepository(Config{Type: "unknown", Dimension: 3})
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)

	assert.Equal(t, 3, repo.GetDimension())
}
