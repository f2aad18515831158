package repository

import (
	"context"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLogRepository 审计轨迹，只追加
type ActivityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository(db *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

func (r *ActivityLogRepository) Append(ctx context.Context, entry *entity.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()[:32]
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByStyle 款式履历，新的在前
func (r *ActivityLogRepository) ListByStyle(ctx context.Context, styleID string, limit int) ([]entity.ActivityLog, error) {
	var items []entity.ActivityLog
	err := r.db.WithContext(ctx).
		Where("style_id = ?", styleID).
		Order("created_at DESC, id").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// ListByEntity 单个实体的全部记录，按时间顺序
func (r *ActivityLogRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]entity.ActivityLog, error) {
	var items []entity.ActivityLog
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at, id").
		Find(&items).Error
	return items, err
}
