package repository

import (
	"errors"
	"time"

	"github.com/fyerfyer/corpus-QA-engine/internal/database"
	"github.com/fyerfyer/corpus-QA-engine/internal/models"
	"gorm.io/gorm"
)

// docRepository 文档台账仓储实现
type docRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档台账仓储实例
func NewDocumentRepository() DocumentRepository {
	return &docRepository{
		db: database.MustDB(),
	}
}

// NewDocumentRepositoryWithDB 使用指定的数据库连接创建文档台账仓储实例
func NewDocumentRepositoryWithDB(db *gorm.DB) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{
		db: db,
	}
}

// Create 创建文档记录
func (r *docRepository) Create(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Create(doc).Error
}

// Update 更新文档记录
func (r *docRepository) Update(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Save(doc).Error
}

// GetByID 根据ID获取文档记录
func (r *docRepository) GetByID(id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// GetByFileName 根据文件名获取最新的文档记录
// 同一文件在多轮摄取后会有多条记录，返回最近的一条
func (r *docRepository) GetByFileName(fileName string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("file_name = ?", fileName).
		Order("created_at DESC").
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// List 列出文档记录，支持分页和状态筛选
func (r *docRepository) List(offset, limit int, status models.DocumentStatus) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := r.db.Model(&models.Document{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// UpdateStatus 更新文档摄取状态
func (r *docRepository) UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}

	if errorMsg != "" {
		updates["error"] = errorMsg
	}

	// 入库完成时记录完成时间
	if status == models.DocStatusIndexed {
		now := time.Now()
		updates["indexed_at"] = &now
	}

	return r.db.Model(&models.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// CreateRun 创建摄取轮次记录
func (r *docRepository) CreateRun(run *models.IngestRun) error {
	if run.ID == "" {
		return errors.New("ingest run ID cannot be empty")
	}

	return r.db.Create(run).Error
}

// FinishRun 结束摄取轮次，写入最终状态和统计
func (r *docRepository) FinishRun(run *models.IngestRun) error {
	if run.ID == "" {
		return errors.New("ingest run ID cannot be empty")
	}

	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}

	return r.db.Save(run).Error
}

// LatestRun 获取最近一次摄取轮次记录
func (r *docRepository) LatestRun() (*models.IngestRun, error) {
	var run models.IngestRun
	err := r.db.Order("started_at DESC").First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrIngestRunNotFound
		}
		return nil, err
	}
	return &run, nil
}
