package entity

import "time"

// ComponentTest 组件测试记录（组件 × 款式 × 测试级别）
type ComponentTest struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	Code        string `json:"code" gorm:"size:32;uniqueIndex;not null"`
	ComponentID string `json:"component_id" gorm:"size:32;not null;index:idx_test_triple"`
	StyleID     string `json:"style_id" gorm:"size:32;not null;index:idx_test_triple;index"`
	Level       string `json:"level" gorm:"size:20;not null;index:idx_test_triple"` // base/bulk/garment
	Status      string `json:"status" gorm:"size:20;default:submitted"`            // submitted/tested

	DueDate  time.Time  `json:"due_date"`
	TestDate *time.Time `json:"test_date"`

	Parameters  []TestParameter  `json:"parameters" gorm:"foreignKey:TestID"`
	Attachments []TestAttachment `json:"attachments" gorm:"foreignKey:TestID"`

	LabReference string `json:"lab_reference" gorm:"size:100"`
	RequestedBy  string `json:"requested_by" gorm:"size:32"`
	RecordedBy   string `json:"recorded_by" gorm:"size:32"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ComponentTest) TableName() string {
	return "qa_component_tests"
}

// IsPassing 已出结果且全部参数通过
func (t *ComponentTest) IsPassing() bool {
	if t.Status != TestStatusTested || len(t.Parameters) == 0 {
		return false
	}
	for _, p := range t.Parameters {
		if p.Status != ParameterStatusPass {
			return false
		}
	}
	return true
}

// 测试级别
const (
	TestLevelBase    = "base"
	TestLevelBulk    = "bulk"
	TestLevelGarment = "garment"
)

// ValidTestLevels 合法测试级别
var ValidTestLevels = map[string]bool{
	TestLevelBase:    true,
	TestLevelBulk:    true,
	TestLevelGarment: true,
}

// 测试状态
const (
	TestStatusSubmitted = "submitted"
	TestStatusTested    = "tested"
)

// TestParameter 测试参数
type TestParameter struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	TestID        string `json:"test_id" gorm:"size:32;not null;index"`
	Position      int    `json:"position"`
	Name          string `json:"name" gorm:"size:100;not null"`
	Specification string `json:"specification" gorm:"size:200"`
	Result        string `json:"result" gorm:"size:200"`
	Status        string `json:"status" gorm:"size:10;not null"` // pass/fail
}

func (TestParameter) TableName() string {
	return "qa_test_parameters"
}

// 参数结果
const (
	ParameterStatusPass = "pass"
	ParameterStatusFail = "fail"
)

// TestAttachment 测试报告附件（对象存储key）
type TestAttachment struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	TestID      string    `json:"test_id" gorm:"size:32;not null;index"`
	Position    int       `json:"position"`
	Name        string    `json:"name" gorm:"size:200"`
	ObjectKey   string    `json:"object_key" gorm:"size:500;not null"`
	ContentType string    `json:"content_type" gorm:"size:100"`
	Size        int64     `json:"size"`
	UploadedBy  string    `json:"uploaded_by" gorm:"size:32"`
	CreatedAt   time.Time `json:"created_at"`
}

func (TestAttachment) TableName() string {
	return "qa_test_attachments"
}
