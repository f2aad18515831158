package entity

import "time"

// Inspection 工厂验货
type Inspection struct {
	ID             string `json:"id" gorm:"primaryKey;size:32"`
	InspectionCode string `json:"inspection_code" gorm:"size:32;uniqueIndex;not null"`
	StyleID        string `json:"style_id" gorm:"size:32;not null;index"`
	FactoryID      string `json:"factory_id" gorm:"size:32;not null;index"`
	Type           string `json:"type" gorm:"size:20;not null"`            // pre_production/inline/final
	Status         string `json:"status" gorm:"size:20;default:scheduled"` // scheduled/completed
	Result         string `json:"result" gorm:"size:20"`                   // passed/failed

	DueDate     time.Time  `json:"due_date"`
	InspectorID *string    `json:"inspector_id" gorm:"size:32"`
	InspectedAt *time.Time `json:"inspected_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`
}

func (Inspection) TableName() string {
	return "qa_inspections"
}

// 验货类型
const (
	InspectionTypePreProduction = "pre_production"
	InspectionTypeInline        = "inline"
	InspectionTypeFinal         = "final"
)

// 验货状态
const (
	InspectionStatusScheduled = "scheduled"
	InspectionStatusCompleted = "completed"
)

// 验货结果
const (
	InspectionResultPassed = "passed"
	InspectionResultFailed = "failed"
)

// GoldSealWorkbook 金封样确认书，审批结果来自外部审批流
type GoldSealWorkbook struct {
	ID               string     `json:"id" gorm:"primaryKey;size:32"`
	StyleID          string     `json:"style_id" gorm:"size:32;not null;index"`
	ApprovalInstance string     `json:"approval_instance" gorm:"size:100;index"`
	Status           string     `json:"status" gorm:"size:20;default:submitted"` // submitted/approved/rejected
	SubmittedBy      string     `json:"submitted_by" gorm:"size:32"`
	DecidedAt        *time.Time `json:"decided_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (GoldSealWorkbook) TableName() string {
	return "qa_gold_seal_workbooks"
}

// 确认书状态
const (
	WorkbookStatusSubmitted = "submitted"
	WorkbookStatusApproved  = "approved"
	WorkbookStatusRejected  = "rejected"
)
