package entity

import "time"

// Supplier 供应商（外部协作方记录，提供测试有效期）
type Supplier struct {
	ID               string    `json:"id" gorm:"primaryKey;size:32"`
	Code             string    `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Name             string    `json:"name" gorm:"size:200;not null"`
	Country          string    `json:"country" gorm:"size:50"`
	TestExpiryMonths int       `json:"test_expiry_months" gorm:"default:0"` // 0表示使用系统默认值
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Supplier) TableName() string {
	return "qa_suppliers"
}

// Factory 工厂
type Factory struct {
	ID              string `json:"id" gorm:"primaryKey;size:32"`
	Code            string `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Name            string `json:"name" gorm:"size:200;not null"`
	Country         string `json:"country" gorm:"size:50"`
	SupplierID      string `json:"supplier_id" gorm:"size:32;index"`
	TotalDeliveries int    `json:"total_deliveries" gorm:"default:0"`
	LateDeliveries  int    `json:"late_deliveries" gorm:"default:0"`

	Certificates []FactoryCertificate `json:"certificates,omitempty" gorm:"foreignKey:FactoryID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Factory) TableName() string {
	return "qa_factories"
}

// FactoryCertificate 工厂认证证书
type FactoryCertificate struct {
	ID        string     `json:"id" gorm:"primaryKey;size:32"`
	FactoryID string     `json:"factory_id" gorm:"size:32;not null;index"`
	Name      string     `json:"name" gorm:"size:100;not null"` // e.g. GOTS, OEKO-TEX, BSCI
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (FactoryCertificate) TableName() string {
	return "qa_factory_certificates"
}

// Lapsed 证书在asOf时已失效（无有效期视为失效）
func (c *FactoryCertificate) Lapsed(asOf time.Time) bool {
	return c.ExpiresAt == nil || asOf.After(*c.ExpiresAt)
}
