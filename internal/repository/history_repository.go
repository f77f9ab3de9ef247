package repository

import (
	"medibot-go/internal/model"

	"gorm.io/gorm"
)

// HistoryRepository 定义了问诊记录的持久化操作。
// 对话的实时窗口放在 Redis，MySQL 只做长期留存与审计。
type HistoryRepository interface {
	Save(record *model.ChatHistory) error
	FindBySession(sessionID string, limit int) ([]model.ChatHistory, error)
	FindByUserWithPagination(userID uint, offset, limit int) ([]model.ChatHistory, int64, error)
}

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository 创建一个新的 HistoryRepository 实例。
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

// Save 保存一条问诊记录。
func (r *historyRepository) Save(record *model.ChatHistory) error {
	return r.db.Create(record).Error
}

// FindBySession 按会话 ID 查询问诊记录，按时间升序返回。
func (r *historyRepository) FindBySession(sessionID string, limit int) ([]model.ChatHistory, error) {
	var records []model.ChatHistory
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// FindByUserWithPagination 分页查询某用户的问诊记录，按时间倒序。
// 返回记录列表、总记录数和可能发生的错误。
func (r *historyRepository) FindByUserWithPagination(userID uint, offset, limit int) ([]model.ChatHistory, int64, error) {
	var records []model.ChatHistory
	var total int64

	db := r.db.Model(&model.ChatHistory{}).Where("user_id = ?", userID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
