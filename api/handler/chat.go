package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/corpus-QA-engine/api/middleware"
	"github.com/fyerfyer/corpus-QA-engine/api/model"
	"github.com/fyerfyer/corpus-QA-engine/internal/services"
)

// ChatHandler 处理问答相关的API请求
type ChatHandler struct {
	qaService *services.QAService // 问答服务
	logger    *logrus.Logger      // 日志记录器
}

// NewChatHandler 创建新的问答处理器
func NewChatHandler(qaService *services.QAService) *ChatHandler {
	return &ChatHandler{
		qaService: qaService,
		logger:    middleware.GetLogger(),
	}
}

// Chat 处理问答请求
// POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Invalid chat request")

		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"invalid request parameters",
		))
		return
	}

	traceID := ""
	if value, exists := c.Get("TraceID"); exists {
		traceID = value.(string)
	}

	h.logger.WithFields(logrus.Fields{
		"question": req.Question,
		"trace_id": traceID,
	}).Info("Chat question received")

	result, err := h.qaService.Chat(c.Request.Context(), req.Question, traceID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"question": req.Question,
			"trace_id": traceID,
		}).Error("Failed to answer question")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to answer question: "+err.Error(),
		))
		return
	}

	resp := model.ChatResponse{
		Question:  req.Question,
		Answer:    result.Answer,
		Sources:   model.ConvertSources(result.Sources),
		Cached:    result.Cached,
		SmallTalk: result.SmallTalk,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
