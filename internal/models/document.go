package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus 文档摄取状态类型
type DocumentStatus string

const (
	// DocStatusPending 文档已发现，等待摄取
	DocStatusPending DocumentStatus = "pending"
	// DocStatusIndexed 文档已成功入库
	DocStatusIndexed DocumentStatus = "indexed"
	// DocStatusSkipped 文档不可读，本轮摄取已跳过
	DocStatusSkipped DocumentStatus = "skipped"
	// DocStatusFailed 文档摄取失败
	DocStatusFailed DocumentStatus = "failed"
)

// Document 文档摄取台账记录
// 记录每个语料文件在摄取过程中的处理结果，
// 仅用于排查和审计，不参与检索
type Document struct {
	ID           string         `gorm:"primaryKey"`           // 文档ID，主键
	FileName     string         `gorm:"not null;index"`       // 文件名
	FileType     string         `gorm:"size:20"`              // 文件类型
	FileSize     int64          `gorm:"not null;default:0"`   // 文件大小（字节）
	Status       DocumentStatus `gorm:"not null;index"`       // 摄取状态
	PageCount    int            `gorm:"not null;default:0"`   // 解析出的页数
	PassageCount int            `gorm:"not null;default:0"`   // 入库的段落数量
	Error        string         `gorm:"type:text"`            // 错误信息
	Metadata     datatypes.JSON `gorm:"type:json"`            // 元数据，JSON格式
	IngestRunID  string         `gorm:"size:50;index"`        // 所属摄取轮次ID
	IndexedAt    *time.Time     `gorm:"index"`                // 入库完成时间
	CreatedAt    time.Time      `gorm:"not null;index"`       // 创建时间
	UpdatedAt    time.Time      `gorm:"not null"`             // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Document) TableName() string {
	return "documents"
}

// IngestRun 摄取轮次记录
// 每次服务启动的摄取过程产生一条记录
type IngestRun struct {
	ID            string     `gorm:"primaryKey"`         // 轮次ID，主键
	State         string     `gorm:"not null;size:30"`   // 结束时的状态机状态
	Forced        bool       `gorm:"not null"`           // 是否为强制重建
	DocumentCount int        `gorm:"not null;default:0"` // 成功入库的文档数
	SkippedCount  int        `gorm:"not null;default:0"` // 跳过的文档数
	PassageCount  int        `gorm:"not null;default:0"` // 入库的段落总数
	Error         string     `gorm:"type:text"`          // 失败原因
	StartedAt     time.Time  `gorm:"not null;index"`     // 开始时间
	FinishedAt    *time.Time `gorm:""`                   // 结束时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置开始时间
func (r *IngestRun) BeforeCreate(tx *gorm.DB) (err error) {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	return nil
}

// TableName 明确指定表名
func (IngestRun) TableName() string {
	return "ingest_runs"
}
