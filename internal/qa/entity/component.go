package entity

import "time"

// Component 物料组件（面料/辅料），独立于任何款式，可被多个款式复用
type Component struct {
	ID      string `json:"id" gorm:"primaryKey;size:32"`
	Code    string `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Variant string `json:"variant" gorm:"size:20;not null;index"` // fabric/trim
	Name    string `json:"name" gorm:"size:200"`

	// 来源
	Mill          string  `json:"mill" gorm:"size:200"`
	OriginCountry string  `json:"origin_country" gorm:"size:50"`
	ReferenceCode string  `json:"reference_code" gorm:"size:100;index"`
	SupplierID    *string `json:"supplier_id" gorm:"size:32"`

	// 合规标记
	Sustainable    bool `json:"sustainable" gorm:"default:false"`
	Regenerative   bool `json:"regenerative" gorm:"default:false"`
	ReachCompliant bool `json:"reach_compliant" gorm:"default:false"`

	Status string `json:"status" gorm:"size:20;default:pending;index"` // pending/approved/rejected

	// 面料字段
	Composition  []FibreComposition `json:"composition,omitempty" gorm:"foreignKey:ComponentID"`
	Construction string             `json:"construction,omitempty" gorm:"size:100"`
	WeightGSM    *int               `json:"weight_gsm,omitempty"`
	WidthCM      *int               `json:"width_cm,omitempty"`
	DyeMethod    string             `json:"dye_method,omitempty" gorm:"size:100"`

	// 辅料字段
	TrimType string `json:"trim_type,omitempty" gorm:"size:50"`
	Size     string `json:"size,omitempty" gorm:"size:50"`
	Material string `json:"material,omitempty" gorm:"size:100"`

	// 通用
	Colour string `json:"colour" gorm:"size:50"`

	// 管理信息
	CreatedBy  string     `json:"created_by" gorm:"size:32"`
	ApprovedBy *string    `json:"approved_by" gorm:"size:32"`
	ApprovedAt *time.Time `json:"approved_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Component) TableName() string {
	return "qa_components"
}

// IsFabric 是否面料
func (c *Component) IsFabric() bool {
	return c.Variant == ComponentVariantFabric
}

// 组件类型
const (
	ComponentVariantFabric = "fabric"
	ComponentVariantTrim   = "trim"
)

// 组件状态
const (
	ComponentStatusPending  = "pending"
	ComponentStatusApproved = "approved"
	ComponentStatusRejected = "rejected"
)

// FibreComposition 面料成分，按Position排序
type FibreComposition struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	ComponentID string `json:"component_id" gorm:"size:32;not null;index"`
	Position    int    `json:"position"`
	FibreType   string `json:"fibre_type" gorm:"size:50;not null"`
	Percentage  int    `json:"percentage"`
	Sustainable bool   `json:"sustainable" gorm:"default:false"`
	Recycled    bool   `json:"recycled" gorm:"default:false"`
}

func (FibreComposition) TableName() string {
	return "qa_fibre_compositions"
}
