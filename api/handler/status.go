package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/corpus-QA-engine/api/middleware"
	"github.com/fyerfyer/corpus-QA-engine/api/model"
	"github.com/fyerfyer/corpus-QA-engine/internal/models"
	"github.com/fyerfyer/corpus-QA-engine/internal/repository"
	"github.com/fyerfyer/corpus-QA-engine/internal/services"
)

// StatusHandler 处理就绪状态和摄取台账查询
type StatusHandler struct {
	engine *services.RetrievalEngine     // 检索引擎
	ledger repository.DocumentRepository // 摄取台账，可为nil
	logger *logrus.Logger
}

// NewStatusHandler 创建新的状态处理器
func NewStatusHandler(engine *services.RetrievalEngine, ledger repository.DocumentRepository) *StatusHandler {
	return &StatusHandler{
		engine: engine,
		ledger: ledger,
		logger: middleware.GetLogger(),
	}
}

// Ready 查询检索是否就绪
// GET /api/ready
func (h *StatusHandler) Ready(c *gin.Context) {
	resp := model.ReadyResponse{
		Ready: h.engine.IsReady(),
		State: string(h.engine.State()),
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListDocuments 查询摄取台账中的文档列表
// GET /api/documents
func (h *StatusHandler) ListDocuments(c *gin.Context) {
	if h.ledger == nil {
		c.JSON(http.StatusNotFound, model.NewErrorResponse(
			http.StatusNotFound,
			"ingest ledger is not enabled",
		))
		return
	}

	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"invalid request parameters",
		))
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	offset := (req.Page - 1) * req.PageSize
	docs, total, err := h.ledger.List(offset, req.PageSize, models.DocumentStatus(req.Status))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list documents")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to list documents",
		))
		return
	}

	resp := model.DocumentListResponse{
		Total:     total,
		Page:      req.Page,
		PageSize:  req.PageSize,
		Documents: model.ConvertDocuments(docs),
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
