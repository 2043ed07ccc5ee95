package repository

import "github.com/fyerfyer/corpus-QA-engine/internal/models"

// DocumentRepository 文档台账仓储接口
// 负责文档摄取记录和摄取轮次记录的存储
type DocumentRepository interface {
	// Create 创建文档记录
	Create(doc *models.Document) error

	// Update 更新文档记录
	Update(doc *models.Document) error

	// GetByID 根据ID获取文档记录
	GetByID(id string) (*models.Document, error)

	// GetByFileName 根据文件名获取最新的文档记录
	GetByFileName(fileName string) (*models.Document, error)

	// List 列出文档记录，支持分页和状态筛选
	List(offset, limit int, status models.DocumentStatus) ([]*models.Document, int64, error)

	// UpdateStatus 更新文档摄取状态
	UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error

	// CreateRun 创建摄取轮次记录
	CreateRun(run *models.IngestRun) error

	// FinishRun 结束摄取轮次，写入最终状态和统计
	FinishRun(run *models.IngestRun) error

	// LatestRun 获取最近一次摄取轮次记录
	LatestRun() (*models.IngestRun, error)
}

// ChatLogRepository 问答日志仓储接口
type ChatLogRepository interface {
	// Save 保存一条问答日志
	Save(log *models.ChatLog) error

	// Recent 获取最近的n条问答日志
	Recent(n int) ([]*models.ChatLog, error)
}
