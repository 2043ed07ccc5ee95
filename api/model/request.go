package model

// ChatMessage 对话历史中的一条消息
type ChatMessage struct {
	Role    string `json:"role"`    // user或assistant
	Content string `json:"content"` // 消息内容
}

// ChatRequest 问答请求
// History是客户端维护的对话历史，当前回答不依赖它，
// 但保留该字段以兼容带历史的客户端
type ChatRequest struct {
	Question string        `json:"question" binding:"required"` // 用户问题
	History  []ChatMessage `json:"history"`                     // 对话历史（可选）
}

// DocumentListRequest 文档列表查询请求
type DocumentListRequest struct {
	Page     int    `form:"page,default=1"`       // 页码，从1开始
	PageSize int    `form:"page_size,default=20"` // 每页大小
	Status   string `form:"status"`               // 按状态过滤（可选）
}
