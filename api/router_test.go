package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/corpus-QA-engine/api/handler"
	"github.com/fyerfyer/corpus-QA-engine/api/model"
	"github.com/fyerfyer/corpus-QA-engine/internal/cache"
	"github.com/fyerfyer/corpus-QA-engine/internal/llm"
	"github.com/fyerfyer/corpus-QA-engine/internal/services"
	"github.com/fyerfyer/corpus-QA-engine/internal/vectordb"
	"github.com/fyerfyer/corpus-QA-engine/pkg/storage"
)

// fixedEmbedder 测试用嵌入客户端，返回字符分布向量
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 8)
	for _, r := range text {
		v[int(r)%8]++
	}
	return v, nil
}

func (f fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i], _ = f.Embed(ctx, text)
	}
	return vectors, nil
}

func (fixedEmbedder) Name() string { return "fixed" }

// fixedLLM 测试用大模型客户端，永远返回同一句回答
type fixedLLM struct{ answer string }

func (f fixedLLM) Generate(ctx context.Context, prompt string, options ...llm.RequestOption) (*llm.Response, error) {
	return &llm.Response{Text: f.answer}, nil
}

func (f fixedLLM) Chat(ctx context.Context, messages []llm.Message, options ...llm.RequestOption) (*llm.Response, error) {
	return &llm.Response{Text: f.answer}, nil
}

func (fixedLLM) Name() string { return "fixed" }

// setupTestRouter 构建一个跑完摄取流程的完整路由
func setupTestRouter(t *testing.T, corpus map[string]string, answer string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	for name, content := range corpus {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	source, err := storage.NewLocalSource(storage.LocalConfig{Path: dir})
	require.NoError(t, err)

	repo, err := vectordb.NewMemoryRepository(vectordb.Config{Dimension: 8})
	require.NoError(t, err)

	ingest, err := services.NewIngestService(source, fixedEmbedder{}, repo)
	require.NoError(t, err)
	require.NoError(t, ingest.Run(context.Background()))

	engine, err := services.NewRetrievalEngine(ingest, 2, nil)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	answerCache, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	rag := llm.NewRAG(fixedLLM{answer: answer}, llm.WithQueryRefine(false))
	qa := services.NewQAService(engine, rag, answerCache)

	return SetupRouter(
		handler.NewChatHandler(qa),
		handler.NewStatusHandler(engine, nil),
	)
}

func postChat(t *testing.T, router *gin.Engine, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatEndpoint(t *testing.T) {
	router := setupTestRouter(t, map[string]string{
		"handbook.txt": "Leave Policy\nEmployees get 20 days of annual leave.",
	}, "Employees get 20 days of annual leave.")

	w := postChat(t, router, model.ChatRequest{Question: "how many leave days do I get"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int                `json:"code"`
		Data model.ChatResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "Employees get 20 days of annual leave.", resp.Data.Answer)
	require.NotEmpty(t, resp.Data.Sources)
	assert.Equal(t, "handbook.txt", resp.Data.Sources[0].Document)
	assert.Equal(t, 1, resp.Data.Sources[0].Page)

	// 响应头带追踪ID
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

func TestChatEndpointSmallTalk(t *testing.T) {
	router := setupTestRouter(t, nil, "unused")

	w := postChat(t, router, model.ChatRequest{Question: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data model.ChatResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.SmallTalk)
	assert.Contains(t, resp.Data.Answer, "Corporate Assistant")
}

func TestChatEndpointEmptyCorpus(t *testing.T) {
	router := setupTestRouter(t, nil, "unused")

	w := postChat(t, router, model.ChatRequest{Question: "what is the leave policy"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data model.ChatResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, services.EmptyCorpusAnswer, resp.Data.Answer)
}

func TestChatEndpointValidation(t *testing.T) {
	router := setupTestRouter(t, nil, "unused")

	// 缺少question字段
	w := postChat(t, router, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 非法JSON
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadyEndpoint(t *testing.T) {
	router := setupTestRouter(t, map[string]string{
		"handbook.txt": "Leave Policy\nEmployees get 20 days of annual leave.",
	}, "unused")

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data model.ReadyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Ready)
	assert.Equal(t, "ready", resp.Data.State)
}

func TestReadyEndpointEmptyCorpus(t *testing.T) {
	router := setupTestRouter(t, nil, "unused")

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data model.ReadyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Ready)
	assert.Equal(t, "empty", resp.Data.State)
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(t, nil, "unused")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestDocumentsEndpointWithoutLedger(t *testing.T) {
	router := setupTestRouter(t, nil, "unused")

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
