package repository

import (
	"context"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SupplierRepository 供应商仓库
type SupplierRepository struct {
	db *gorm.DB
}

func NewSupplierRepository(db *gorm.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// FindByID 根据ID查找供应商
func (r *SupplierRepository) FindByID(ctx context.Context, id string) (*entity.Supplier, error) {
	var supplier entity.Supplier
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&supplier).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &supplier, nil
}

// Create 创建供应商
func (r *SupplierRepository) Create(ctx context.Context, supplier *entity.Supplier) error {
	return r.db.WithContext(ctx).Create(supplier).Error
}

// FactoryRepository 工厂仓库
type FactoryRepository struct {
	db *gorm.DB
}

func NewFactoryRepository(db *gorm.DB) *FactoryRepository {
	return &FactoryRepository{db: db}
}

// FindByID 根据ID查找工厂（含证书）
func (r *FactoryRepository) FindByID(ctx context.Context, id string) (*entity.Factory, error) {
	var factory entity.Factory
	err := r.db.WithContext(ctx).
		Preload("Certificates").
		Where("id = ?", id).
		First(&factory).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &factory, nil
}

// Create 创建工厂及证书
func (r *FactoryRepository) Create(ctx context.Context, factory *entity.Factory) error {
	for i := range factory.Certificates {
		if factory.Certificates[i].ID == "" {
			factory.Certificates[i].ID = uuid.New().String()[:32]
		}
		factory.Certificates[i].FactoryID = factory.ID
	}
	return r.db.WithContext(ctx).Create(factory).Error
}
