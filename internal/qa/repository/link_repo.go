package repository

import (
	"context"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"gorm.io/gorm"
)

// LinkRepository 款式-组件关联仓库
type LinkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// FindByID 根据ID查找关联
func (r *LinkRepository) FindByID(ctx context.Context, id string) (*entity.StyleComponentLink, error) {
	var link entity.StyleComponentLink
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

// FindByPair 按款式+组件查找（含已解除的关联）
func (r *LinkRepository) FindByPair(ctx context.Context, styleID, componentID string) (*entity.StyleComponentLink, error) {
	var link entity.StyleComponentLink
	err := r.db.WithContext(ctx).
		Where("style_id = ? AND component_id = ?", styleID, componentID).
		First(&link).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

// FindActiveByStyle 款式当前的物料清单
func (r *LinkRepository) FindActiveByStyle(ctx context.Context, styleID string) ([]entity.StyleComponentLink, error) {
	var items []entity.StyleComponentLink
	err := r.db.WithContext(ctx).
		Where("style_id = ? AND superseded_at IS NULL", styleID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// FindActiveByComponent 使用该组件的全部有效关联
func (r *LinkRepository) FindActiveByComponent(ctx context.Context, componentID string) ([]entity.StyleComponentLink, error) {
	var items []entity.StyleComponentLink
	err := r.db.WithContext(ctx).
		Where("component_id = ? AND superseded_at IS NULL", componentID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// FindInheritanceCandidates 可作为继承来源的关联：同组件、其他款式、已合规、非继承而来，最新的在前
func (r *LinkRepository) FindInheritanceCandidates(ctx context.Context, componentID, excludeStyleID string) ([]entity.StyleComponentLink, error) {
	var items []entity.StyleComponentLink
	err := r.db.WithContext(ctx).
		Where("component_id = ? AND style_id <> ?", componentID, excludeStyleID).
		Where("tu_status = ? AND superseded_at IS NULL", entity.TUStatusApproved).
		Where("base_test_copied_from IS NULL OR base_test_copied_from = ''").
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// CountApprovedByComponent 组件处于合规状态的关联数量
func (r *LinkRepository) CountApprovedByComponent(ctx context.Context, componentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.StyleComponentLink{}).
		Where("component_id = ? AND tu_status = ? AND superseded_at IS NULL", componentID, entity.TUStatusApproved).
		Count(&count).Error
	return count, err
}

// FindExpirable 继承且仍为合规的关联，可选限定款式
func (r *LinkRepository) FindExpirable(ctx context.Context, styleID string) ([]entity.StyleComponentLink, error) {
	var items []entity.StyleComponentLink
	query := r.db.WithContext(ctx).
		Where("tu_status = ? AND base_test_expires_at IS NOT NULL", entity.TUStatusApproved)
	if styleID != "" {
		query = query.Where("style_id = ?", styleID)
	}
	err := query.Find(&items).Error
	return items, err
}

// Create 创建关联
func (r *LinkRepository) Create(ctx context.Context, link *entity.StyleComponentLink) error {
	if link.Version == 0 {
		link.Version = 1
	}
	return r.db.WithContext(ctx).Create(link).Error
}

// Save 保存关联，版本号递增，仅当版本未变时生效
func (r *LinkRepository) Save(ctx context.Context, link *entity.StyleComponentLink) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.StyleComponentLink{}).
		Where("id = ? AND version = ?", link.ID, link.Version).
		Updates(map[string]interface{}{
			"tu_status":             link.TUStatus,
			"base_test_copied_from": link.BaseTestCopiedFrom,
			"base_test_copied_at":   link.BaseTestCopiedAt,
			"base_test_expires_at":  link.BaseTestExpiresAt,
			"superseded_at":         link.SupersededAt,
			"superseded_by":         link.SupersededBy,
			"version":               link.Version + 1,
			"updated_at":            time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected != 1 {
		return false, nil
	}
	link.Version++
	return true, nil
}

// DowngradeIfUnchanged 过期降级：CAS(id, version, approved) → pending，继承信息保留
func (r *LinkRepository) DowngradeIfUnchanged(ctx context.Context, id string, version int, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.StyleComponentLink{}).
		Where("id = ? AND version = ? AND tu_status = ?", id, version, entity.TUStatusApproved).
		Updates(map[string]interface{}{
			"tu_status":  entity.TUStatusPending,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
