package entity

import "time"

// Style 款式（产品），按六个阶段推进审批
type Style struct {
	ID   string `json:"id" gorm:"primaryKey;size:32"`
	Code string `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Name string `json:"name" gorm:"size:200"`

	// 来源
	SupplierID      string `json:"supplier_id" gorm:"size:32;index"`
	FactoryID       string `json:"factory_id" gorm:"size:32;index"`
	CountryOfOrigin string `json:"country_of_origin" gorm:"size:50"`

	// 只能由生命周期编排修改
	Stage string `json:"stage" gorm:"size:30;default:base;index"`

	// 负责人（引用，不拥有）
	FabricTechID  string `json:"fabric_tech_id" gorm:"size:32"`
	GarmentTechID string `json:"garment_tech_id" gorm:"size:32"`

	// 里程碑
	FabricCutDate        *time.Time `json:"fabric_cut_date"`
	GoldSealDate         *time.Time `json:"gold_seal_date"`
	BaseApprovalRequired *time.Time `json:"base_approval_required"`
	Rush                 bool       `json:"rush" gorm:"default:false"`

	// 由关联表物化，不落库
	ComponentIDs []string `json:"component_ids" gorm:"-"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Style) TableName() string {
	return "qa_styles"
}

// 款式阶段
const (
	StageBase            = "base"
	StageBaseApproved    = "base_approved"
	StageBulk            = "bulk"
	StageBulkApproved    = "bulk_approved"
	StageProduct         = "product"
	StageProductApproved = "product_approved" // Gold Seal，终态
)

// StageOrder 阶段顺序，只能逐级前进
var StageOrder = []string{
	StageBase,
	StageBaseApproved,
	StageBulk,
	StageBulkApproved,
	StageProduct,
	StageProductApproved,
}

// NextStage 返回下一阶段，终态或未知阶段返回空
func NextStage(stage string) string {
	for i, s := range StageOrder {
		if s == stage && i+1 < len(StageOrder) {
			return StageOrder[i+1]
		}
	}
	return ""
}

// StageIndex 阶段序号，未知阶段返回-1
func StageIndex(stage string) int {
	for i, s := range StageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}
