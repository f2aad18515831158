package repository

import (
	"context"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"gorm.io/gorm"
)

// InspectionRepository 验货仓库
type InspectionRepository struct {
	db *gorm.DB
}

func NewInspectionRepository(db *gorm.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// FindByID 根据ID查找验货
func (r *InspectionRepository) FindByID(ctx context.Context, id string) (*entity.Inspection, error) {
	var inspection entity.Inspection
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&inspection).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &inspection, nil
}

// FindByStyle 款式的全部验货
func (r *InspectionRepository) FindByStyle(ctx context.Context, styleID string) ([]entity.Inspection, error) {
	var items []entity.Inspection
	err := r.db.WithContext(ctx).
		Where("style_id = ?", styleID).
		Order("due_date ASC").
		Find(&items).Error
	return items, err
}

// CountResultsByFactory 工厂已完成验货的总数与不通过数
func (r *InspectionRepository) CountResultsByFactory(ctx context.Context, factoryID string) (total, failed int64, err error) {
	base := r.db.WithContext(ctx).
		Model(&entity.Inspection{}).
		Where("factory_id = ? AND status = ?", factoryID, entity.InspectionStatusCompleted)
	if err = base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = base.Session(&gorm.Session{}).
		Where("result = ?", entity.InspectionResultFailed).
		Count(&failed).Error
	return total, failed, err
}

// Create 创建验货
func (r *InspectionRepository) Create(ctx context.Context, inspection *entity.Inspection) error {
	return r.db.WithContext(ctx).Create(inspection).Error
}

// Update 更新验货
func (r *InspectionRepository) Update(ctx context.Context, inspection *entity.Inspection) error {
	return r.db.WithContext(ctx).Save(inspection).Error
}

// GenerateCode 生成验货编码 INS-{year}-{4位}
func (r *InspectionRepository) GenerateCode(ctx context.Context) (string, error) {
	return nextCode(r.db.WithContext(ctx), &entity.Inspection{}, "inspection_code", "INS")
}
