package repository

import (
	"context"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"gorm.io/gorm"
)

// StyleRepository 款式仓库
type StyleRepository struct {
	db *gorm.DB
}

func NewStyleRepository(db *gorm.DB) *StyleRepository {
	return &StyleRepository{db: db}
}

// FindAll 查询款式列表
func (r *StyleRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Style, int64, error) {
	var items []entity.Style
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Style{})

	if stage := filters["stage"]; stage != "" {
		query = query.Where("stage = ?", stage)
	}
	if supplierID := filters["supplier_id"]; supplierID != "" {
		query = query.Where("supplier_id = ?", supplierID)
	}
	if factoryID := filters["factory_id"]; factoryID != "" {
		query = query.Where("factory_id = ?", factoryID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找款式
func (r *StyleRepository) FindByID(ctx context.Context, id string) (*entity.Style, error) {
	var style entity.Style
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&style).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &style, nil
}

// FindIDsByFactory 查询工厂下全部款式ID
func (r *StyleRepository) FindIDsByFactory(ctx context.Context, factoryID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.Style{}).
		Where("factory_id = ?", factoryID).
		Pluck("id", &ids).Error
	return ids, err
}

// Create 创建款式
func (r *StyleRepository) Create(ctx context.Context, style *entity.Style) error {
	return r.db.WithContext(ctx).Create(style).Error
}

// Update 更新款式，阶段字段不在此处写入
func (r *StyleRepository) Update(ctx context.Context, style *entity.Style) error {
	return r.db.WithContext(ctx).Omit("stage").Save(style).Error
}

// UpdateStage 阶段推进，仅当当前阶段仍为from时生效
func (r *StyleRepository) UpdateStage(ctx context.Context, id, from, to string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Style{}).
		Where("id = ? AND stage = ?", id, from).
		Updates(map[string]interface{}{
			"stage":      to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GenerateCode 生成款式编码 STY-{year}-{4位}
func (r *StyleRepository) GenerateCode(ctx context.Context) (string, error) {
	return nextCode(r.db.WithContext(ctx), &entity.Style{}, "code", "STY")
}
