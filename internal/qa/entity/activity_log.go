package entity

import "time"

// 审计实体类型
const (
	AuditComponent  = "component"
	AuditStyle      = "style"
	AuditLink       = "link"
	AuditTest       = "test"
	AuditInspection = "inspection"
	AuditWorkbook   = "workbook"
)

// ActivityLog 审计轨迹，只记录谁在何时做了什么，不参与任何业务判断。
// StyleID 非空时该记录归入款式的合规履历
type ActivityLog struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	EntityType string `json:"entity_type" gorm:"size:20;not null;index:idx_qa_activity_entity"`
	EntityID   string `json:"entity_id" gorm:"size:32;not null;index:idx_qa_activity_entity"`
	EntityCode string `json:"entity_code,omitempty" gorm:"size:32"`
	StyleID    string `json:"style_id,omitempty" gorm:"size:32;index"`

	Action     string `json:"action" gorm:"size:30;not null"`
	FromStatus string `json:"from_status,omitempty" gorm:"size:20"`
	ToStatus   string `json:"to_status,omitempty" gorm:"size:20"`
	Detail     string `json:"detail,omitempty" gorm:"type:text"`

	OperatorID string    `json:"operator_id" gorm:"size:64"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

func (ActivityLog) TableName() string {
	return "qa_activity_logs"
}

// AllModels 需要迁移的全部表
func AllModels() []interface{} {
	return []interface{}{
		&Supplier{},
		&Factory{},
		&FactoryCertificate{},
		&Component{},
		&FibreComposition{},
		&Style{},
		&StyleComponentLink{},
		&ComponentTest{},
		&TestParameter{},
		&TestAttachment{},
		&Inspection{},
		&GoldSealWorkbook{},
		&ActivityLog{},
	}
}
