package repository

import (
	"github.com/fyerfyer/corpus-QA-engine/internal/database"
	"github.com/fyerfyer/corpus-QA-engine/internal/models"
	"gorm.io/gorm"
)

// chatLogRepository 问答日志仓储实现
type chatLogRepository struct {
	db *gorm.DB
}

// NewChatLogRepository 创建问答日志仓储实例
func NewChatLogRepository() ChatLogRepository {
	return &chatLogRepository{
		db: database.MustDB(),
	}
}

// NewChatLogRepositoryWithDB 使用指定的数据库连接创建问答日志仓储实例
func NewChatLogRepositoryWithDB(db *gorm.DB) ChatLogRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &chatLogRepository{
		db: db,
	}
}

// Save 保存一条问答日志
func (r *chatLogRepository) Save(log *models.ChatLog) error {
	return r.db.Create(log).Error
}

// Recent 获取最近的n条问答日志
func (r *chatLogRepository) Recent(n int) ([]*models.ChatLog, error) {
	if n <= 0 {
		n = 10
	}

	var logs []*models.ChatLog
	err := r.db.Order("created_at DESC").
		Limit(n).
		Find(&logs).Error
	return logs, err
}
