package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatLog 问答日志模型
// 记录每次问答请求的问题、回答和引用来源，用于排查检索质量
type ChatLog struct {
	ID              uint           `gorm:"primaryKey;autoIncrement"` // 主键ID
	TraceID         string         `gorm:"size:50;index"`            // 请求追踪ID
	Question        string         `gorm:"type:text;not null"`       // 原始问题
	RefinedQuestion string         `gorm:"type:text"`                // 改写后的问题
	Answer          string         `gorm:"type:text"`                // 生成的回答
	Cached          bool           `gorm:"not null"`                 // 是否命中缓存
	SmallTalk       bool           `gorm:"not null"`                 // 是否为寒暄回复
	Sources         datatypes.JSON `gorm:"type:json"`                // 引用的信息源
	LatencyMs       int64          `gorm:"not null;default:0"`       // 处理耗时（毫秒）
	CreatedAt       time.Time      `gorm:"not null;index"`           // 创建时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (cl *ChatLog) BeforeCreate(tx *gorm.DB) (err error) {
	if cl.CreatedAt.IsZero() {
		cl.CreatedAt = time.Now()
	}
	return nil
}

// TableName 明确指定表名
func (ChatLog) TableName() string {
	return "chat_logs"
}

// Source 表示回答引用的信息源
type Source struct {
	Document string  `json:"document"`        // 文档文件名
	Page     int     `json:"page"`            // 页码
	Section  string  `json:"section"`         // 章节名称
	Text     string  `json:"text"`            // 引用的文本
	Score    float32 `json:"score,omitempty"` // 匹配分数
}
