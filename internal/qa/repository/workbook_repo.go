package repository

import (
	"context"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"gorm.io/gorm"
)

// WorkbookRepository 金封样确认书仓库
type WorkbookRepository struct {
	db *gorm.DB
}

func NewWorkbookRepository(db *gorm.DB) *WorkbookRepository {
	return &WorkbookRepository{db: db}
}

// FindByApprovalInstance 按审批实例查找
func (r *WorkbookRepository) FindByApprovalInstance(ctx context.Context, instanceCode string) (*entity.GoldSealWorkbook, error) {
	var wb entity.GoldSealWorkbook
	err := r.db.WithContext(ctx).
		Where("approval_instance = ?", instanceCode).
		First(&wb).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &wb, nil
}

// FindLatestByStyle 款式最近一次提交的确认书
func (r *WorkbookRepository) FindLatestByStyle(ctx context.Context, styleID string) (*entity.GoldSealWorkbook, error) {
	var wb entity.GoldSealWorkbook
	err := r.db.WithContext(ctx).
		Where("style_id = ?", styleID).
		Order("created_at DESC").
		First(&wb).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &wb, nil
}

// Create 提交确认书
func (r *WorkbookRepository) Create(ctx context.Context, wb *entity.GoldSealWorkbook) error {
	return r.db.WithContext(ctx).Create(wb).Error
}

// Decide 仅当确认书仍为submitted时写入审批结果，返回是否生效
func (r *WorkbookRepository) Decide(ctx context.Context, id, status string, decidedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.GoldSealWorkbook{}).
		Where("id = ? AND status = ?", id, entity.WorkbookStatusSubmitted).
		Updates(map[string]interface{}{
			"status":     status,
			"decided_at": decidedAt,
			"updated_at": decidedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
