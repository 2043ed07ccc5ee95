package model

import (
	"time"

	"github.com/fyerfyer/corpus-QA-engine/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// SourceInfo 回答引用的来源段落
type SourceInfo struct {
	Document string  `json:"document"` // 所属文档的文件名
	Page     int     `json:"page"`     // 页码（1起始）
	Section  string  `json:"section"`  // 章节标签
	Text     string  `json:"text"`     // 段落文本
	Score    float32 `json:"score"`    // 检索得分
}

// ChatResponse 问答响应
type ChatResponse struct {
	Question  string       `json:"question"`   // 用户问题
	Answer    string       `json:"answer"`     // 生成的回答
	Sources   []SourceInfo `json:"sources"`    // 引用来源
	Cached    bool         `json:"cached"`     // 是否命中缓存
	SmallTalk bool         `json:"small_talk"` // 是否为寒暄回复
}

// ConvertSources 将内部来源记录转换为响应格式
func ConvertSources(sources []models.Source) []SourceInfo {
	if len(sources) == 0 {
		return []SourceInfo{}
	}

	out := make([]SourceInfo, len(sources))
	for i, s := range sources {
		out[i] = SourceInfo{
			Document: s.Document,
			Page:     s.Page,
			Section:  s.Section,
			Text:     s.Text,
			Score:    s.Score,
		}
	}
	return out
}

// ReadyResponse 就绪状态查询响应
type ReadyResponse struct {
	Ready bool   `json:"ready"` // 检索是否就绪
	State string `json:"state"` // 摄取状态机的当前状态
}

// DocumentInfo 摄取台账中的文档信息
type DocumentInfo struct {
	FileID    string    `json:"file_id"`         // 文档ID
	FileName  string    `json:"filename"`        // 文件名
	Status    string    `json:"status"`          // 摄取状态
	PageCount int       `json:"page_count"`      // 页数
	Passages  int       `json:"passages"`        // 段落数量
	Error     string    `json:"error,omitempty"` // 错误信息（如果有）
	CreatedAt time.Time `json:"created_at"`      // 记录时间
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Documents []DocumentInfo `json:"documents"` // 文档列表
}

// ConvertDocuments 将台账记录转换为响应格式
func ConvertDocuments(docs []*models.Document) []DocumentInfo {
	out := make([]DocumentInfo, len(docs))
	for i, d := range docs {
		out[i] = DocumentInfo{
			FileID:    d.ID,
			FileName:  d.FileName,
			Status:    string(d.Status),
			PageCount: d.PageCount,
			Passages:  d.PassageCount,
			Error:     d.Error,
			CreatedAt: d.CreatedAt,
		}
	}
	return out
}
