package entity

import "time"

// StyleComponentLink 款式-组件关联（N:M），记录该款式下组件的合规状态及继承来源
type StyleComponentLink struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	StyleID     string `json:"style_id" gorm:"size:32;not null;uniqueIndex:idx_link_style_component"`
	ComponentID string `json:"component_id" gorm:"size:32;not null;uniqueIndex:idx_link_style_component;index"`
	TUStatus    string `json:"tu_status" gorm:"size:20;default:pending;index"` // pending/approved

	// 基础测试继承
	BaseTestCopiedFrom *string    `json:"base_test_copied_from" gorm:"size:32"`
	BaseTestCopiedAt   *time.Time `json:"base_test_copied_at"`
	BaseTestExpiresAt  *time.Time `json:"base_test_expires_at" gorm:"index"`

	// 乐观锁版本号，过期降级按版本CAS
	Version int `json:"version" gorm:"not null;default:1"`

	// 解除关联只做标记，保留审计历史
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
	SupersededBy string     `json:"superseded_by,omitempty" gorm:"size:32"`

	LinkedBy  string    `json:"linked_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StyleComponentLink) TableName() string {
	return "qa_style_component_links"
}

// IsInherited 是否继承自其他款式的基础测试
func (l *StyleComponentLink) IsInherited() bool {
	return l.BaseTestCopiedFrom != nil && *l.BaseTestCopiedFrom != ""
}

// IsActive 未被解除的关联
func (l *StyleComponentLink) IsActive() bool {
	return l.SupersededAt == nil
}

// InheritanceExpired 继承的基础测试在asOf时刻是否已过期
func (l *StyleComponentLink) InheritanceExpired(asOf time.Time) bool {
	return l.BaseTestExpiresAt != nil && asOf.After(*l.BaseTestExpiresAt)
}

// 合规状态
const (
	TUStatusPending  = "pending"
	TUStatusApproved = "approved"
)
