package repository

import (
	"context"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TestRepository 组件测试仓库
type TestRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{db: db}
}

func (r *TestRepository) withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Parameters", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

// FindByID 根据ID查找测试
func (r *TestRepository) FindByID(ctx context.Context, id string) (*entity.ComponentTest, error) {
	var test entity.ComponentTest
	err := r.withChildren(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&test).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &test, nil
}

// FindOpen 查找未出结果的测试申请
func (r *TestRepository) FindOpen(ctx context.Context, componentID, styleID, level string) (*entity.ComponentTest, error) {
	var test entity.ComponentTest
	err := r.db.WithContext(ctx).
		Where("component_id = ? AND style_id = ? AND level = ? AND status = ?",
			componentID, styleID, level, entity.TestStatusSubmitted).
		First(&test).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &test, nil
}

// FindLatestTested 最近一次出结果的测试，更正会产生新记录并以最新为准
func (r *TestRepository) FindLatestTested(ctx context.Context, componentID, styleID, level string) (*entity.ComponentTest, error) {
	var test entity.ComponentTest
	err := r.withChildren(r.db.WithContext(ctx)).
		Where("component_id = ? AND style_id = ? AND level = ? AND status = ?",
			componentID, styleID, level, entity.TestStatusTested).
		Order("test_date DESC").
		Order("created_at DESC").
		First(&test).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &test, nil
}

// FindByComponent 组件的全部测试
func (r *TestRepository) FindByComponent(ctx context.Context, componentID string) ([]entity.ComponentTest, error) {
	var items []entity.ComponentTest
	err := r.withChildren(r.db.WithContext(ctx)).
		Where("component_id = ?", componentID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// FindByStyle 款式的全部测试
func (r *TestRepository) FindByStyle(ctx context.Context, styleID string) ([]entity.ComponentTest, error) {
	var items []entity.ComponentTest
	err := r.withChildren(r.db.WithContext(ctx)).
		Where("style_id = ?", styleID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// FindTestedByStyles 多个款式下已出结果的测试（风险评估用）
func (r *TestRepository) FindTestedByStyles(ctx context.Context, styleIDs []string) ([]entity.ComponentTest, error) {
	var items []entity.ComponentTest
	if len(styleIDs) == 0 {
		return items, nil
	}
	err := r.withChildren(r.db.WithContext(ctx)).
		Where("style_id IN ? AND status = ?", styleIDs, entity.TestStatusTested).
		Find(&items).Error
	return items, err
}

// Create 创建测试申请
func (r *TestRepository) Create(ctx context.Context, test *entity.ComponentTest) error {
	return r.db.WithContext(ctx).Omit("Parameters", "Attachments").Create(test).Error
}

// Finalize 录入结果：仅当仍为submitted时生效，返回是否写入
func (r *TestRepository) Finalize(ctx context.Context, test *entity.ComponentTest, params []entity.TestParameter, testDate time.Time) (bool, error) {
	db := r.db.WithContext(ctx)
	result := db.Model(&entity.ComponentTest{}).
		Where("id = ? AND status = ?", test.ID, entity.TestStatusSubmitted).
		Updates(map[string]interface{}{
			"status":        entity.TestStatusTested,
			"test_date":     testDate,
			"recorded_by":   test.RecordedBy,
			"lab_reference": test.LabReference,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected != 1 {
		return false, nil
	}

	for i := range params {
		params[i].ID = uuid.New().String()[:32]
		params[i].TestID = test.ID
		params[i].Position = i
	}
	if len(params) > 0 {
		if err := db.Create(&params).Error; err != nil {
			return false, err
		}
	}

	test.Status = entity.TestStatusTested
	test.TestDate = &testDate
	test.Parameters = params
	return true, nil
}

// AddAttachment 追加附件
func (r *TestRepository) AddAttachment(ctx context.Context, attachment *entity.TestAttachment) error {
	db := r.db.WithContext(ctx)
	var count int64
	if err := db.Model(&entity.TestAttachment{}).Where("test_id = ?", attachment.TestID).Count(&count).Error; err != nil {
		return err
	}
	if attachment.ID == "" {
		attachment.ID = uuid.New().String()[:32]
	}
	attachment.Position = int(count)
	return db.Create(attachment).Error
}

// GenerateCode 生成测试编码 TST-{year}-{4位}
func (r *TestRepository) GenerateCode(ctx context.Context) (string, error) {
	return nextCode(r.db.WithContext(ctx), &entity.ComponentTest{}, "code", "TST")
}
