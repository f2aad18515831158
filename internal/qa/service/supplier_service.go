package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/google/uuid"
)

// SupplierService 供应商与工厂档案（外部协作方记录）
type SupplierService struct {
	*engine
}

// CreateSupplierRequest 创建供应商请求
type CreateSupplierRequest struct {
	Code             string `json:"code" binding:"required"`
	Name             string `json:"name" binding:"required"`
	Country          string `json:"country"`
	TestExpiryMonths int    `json:"test_expiry_months"`
}

// CertificateInput 工厂证书
type CertificateInput struct {
	Name      string     `json:"name" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreateFactoryRequest 创建工厂请求
type CreateFactoryRequest struct {
	Code            string             `json:"code" binding:"required"`
	Name            string             `json:"name" binding:"required"`
	Country         string             `json:"country"`
	SupplierID      string             `json:"supplier_id"`
	TotalDeliveries int                `json:"total_deliveries"`
	LateDeliveries  int                `json:"late_deliveries"`
	Certificates    []CertificateInput `json:"certificates"`
}

// CreateSupplier 创建供应商
func (s *SupplierService) CreateSupplier(ctx context.Context, req *CreateSupplierRequest) (*entity.Supplier, error) {
	if req.TestExpiryMonths < 0 {
		return nil, &FieldError{Field: "test_expiry_months", Message: "must not be negative"}
	}

	now := s.now()
	supplier := &entity.Supplier{
		ID:               uuid.New().String()[:32],
		Code:             req.Code,
		Name:             req.Name,
		Country:          req.Country,
		TestExpiryMonths: req.TestExpiryMonths,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repos.Supplier.Create(ctx, supplier); err != nil {
		return nil, fmt.Errorf("create supplier: %w", err)
	}
	return supplier, nil
}

// GetSupplier 获取供应商
func (s *SupplierService) GetSupplier(ctx context.Context, id string) (*entity.Supplier, error) {
	supplier, err := s.repos.Supplier.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "supplier", id)
	}
	return supplier, nil
}

// CreateFactory 创建工厂及证书
func (s *SupplierService) CreateFactory(ctx context.Context, req *CreateFactoryRequest) (*entity.Factory, error) {
	if req.TotalDeliveries < 0 || req.LateDeliveries < 0 || req.LateDeliveries > req.TotalDeliveries {
		return nil, &FieldError{Field: "late_deliveries", Message: "must be between 0 and total_deliveries"}
	}
	if req.SupplierID != "" {
		if _, err := s.repos.Supplier.FindByID(ctx, req.SupplierID); err != nil {
			return nil, wrapNotFound(err, "supplier", req.SupplierID)
		}
	}

	now := s.now()
	factory := &entity.Factory{
		ID:              uuid.New().String()[:32],
		Code:            req.Code,
		Name:            req.Name,
		Country:         req.Country,
		SupplierID:      req.SupplierID,
		TotalDeliveries: req.TotalDeliveries,
		LateDeliveries:  req.LateDeliveries,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, c := range req.Certificates {
		factory.Certificates = append(factory.Certificates, entity.FactoryCertificate{
			Name:      c.Name,
			ExpiresAt: c.ExpiresAt,
			CreatedAt: now,
		})
	}
	if err := s.repos.Factory.Create(ctx, factory); err != nil {
		return nil, fmt.Errorf("create factory: %w", err)
	}
	return factory, nil
}

// GetFactory 获取工厂
func (s *SupplierService) GetFactory(ctx context.Context, id string) (*entity.Factory, error) {
	factory, err := s.repos.Factory.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "factory", id)
	}
	return factory, nil
}
