package repository

import (
	"context"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ComponentRepository 组件仓库
type ComponentRepository struct {
	db *gorm.DB
}

func NewComponentRepository(db *gorm.DB) *ComponentRepository {
	return &ComponentRepository{db: db}
}

func orderedComposition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// FindAll 查询组件列表
func (r *ComponentRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Component, int64, error) {
	var items []entity.Component
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Component{})

	if variant := filters["variant"]; variant != "" {
		query = query.Where("variant = ?", variant)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if mill := filters["mill"]; mill != "" {
		query = query.Where("mill = ?", mill)
	}
	if keyword := filters["keyword"]; keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("code LIKE ? OR name LIKE ? OR reference_code LIKE ?", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Composition", orderedComposition).
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找组件（含成分）
func (r *ComponentRepository) FindByID(ctx context.Context, id string) (*entity.Component, error) {
	var component entity.Component
	err := r.db.WithContext(ctx).
		Preload("Composition", orderedComposition).
		Where("id = ?", id).
		First(&component).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &component, nil
}

// FindByIDs 批量查找组件，顺序与ids无关
func (r *ComponentRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.Component, error) {
	var items []entity.Component
	if len(ids) == 0 {
		return items, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Composition", orderedComposition).
		Where("id IN ?", ids).
		Find(&items).Error
	return items, err
}

// Create 创建组件及成分
func (r *ComponentRepository) Create(ctx context.Context, component *entity.Component) error {
	prepareComposition(component)
	return r.db.WithContext(ctx).Create(component).Error
}

// Update 更新组件基础字段（不含成分）
func (r *ComponentRepository) Update(ctx context.Context, component *entity.Component) error {
	return r.db.WithContext(ctx).Omit("Composition").Save(component).Error
}

// ReplaceComposition 整体替换面料成分
func (r *ComponentRepository) ReplaceComposition(ctx context.Context, component *entity.Component) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("component_id = ?", component.ID).Delete(&entity.FibreComposition{}).Error; err != nil {
		return err
	}
	prepareComposition(component)
	if len(component.Composition) == 0 {
		return nil
	}
	return db.Create(&component.Composition).Error
}

// GenerateCode 生成组件编码 CMP-{year}-{4位}
func (r *ComponentRepository) GenerateCode(ctx context.Context) (string, error) {
	return nextCode(r.db.WithContext(ctx), &entity.Component{}, "code", "CMP")
}

func prepareComposition(component *entity.Component) {
	for i := range component.Composition {
		if component.Composition[i].ID == "" {
			component.Composition[i].ID = uuid.New().String()[:32]
		}
		component.Composition[i].ComponentID = component.ID
		component.Composition[i].Position = i
	}
}
