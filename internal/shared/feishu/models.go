package feishu

import "encoding/json"

// BaseResponse 飞书API通用响应
type BaseResponse struct {
	Code int    `json:"code"` // 0表示成功
	Msg  string `json:"msg"`
}

// 审批表单字段类型
const (
	FieldTypeText     = "input"
	FieldTypeTextArea = "textarea"
	FieldTypeDate     = "date"
)

// CreateApprovalInstanceReq 创建审批实例请求
type CreateApprovalInstanceReq struct {
	ApprovalCode string `json:"approval_code"`
	OpenID       string `json:"open_id"` // 发起人
	FormData     string `json:"form"`    // 表单JSON字符串
}

// ApprovalInstance 审批实例
type ApprovalInstance struct {
	InstanceCode string `json:"instance_code"`
	ApprovalCode string `json:"approval_code"`
	Status       string `json:"status"` // PENDING/APPROVED/REJECTED/CANCELED/DELETED
	OpenID       string `json:"open_id"`
	StartTime    string `json:"start_time"` // 毫秒时间戳
	EndTime      string `json:"end_time"`
}

// CreateApprovalInstanceResponse 创建审批实例响应
type CreateApprovalInstanceResponse struct {
	BaseResponse
	Data struct {
		InstanceCode string `json:"instance_code"`
	} `json:"data"`
}

// GetApprovalInstanceResponse 获取审批实例响应
type GetApprovalInstanceResponse struct {
	BaseResponse
	Data ApprovalInstance `json:"data"`
}

// 审批状态
const (
	ApprovalStatusPending  = "PENDING"
	ApprovalStatusApproved = "APPROVED"
	ApprovalStatusRejected = "REJECTED"
	ApprovalStatusCanceled = "CANCELED"
	ApprovalStatusDeleted  = "DELETED"
)

// 事件类型
const (
	EventTypeApprovalInstance = "approval_instance"
	EventTypeURLVerification  = "url_verification"
)

// WebhookEvent 回调事件信封，兼容v1/v2
type WebhookEvent struct {
	Schema string          `json:"schema"`
	Header *WebhookHeader  `json:"header"`
	Event  json.RawMessage `json:"event"`
	// v1
	Type      string `json:"type,omitempty"`
	Challenge string `json:"challenge,omitempty"`
	Token     string `json:"token,omitempty"`
}

// WebhookHeader v2事件头
type WebhookHeader struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Token      string `json:"token"`
	AppID      string `json:"app_id"`
}

// ApprovalEvent 审批实例状态事件
type ApprovalEvent struct {
	EventID      string `json:"-"`
	ApprovalCode string `json:"approval_code"`
	InstanceCode string `json:"instance_code"`
	Status       string `json:"status"`
	OperateTime  string `json:"operate_time"`
	OpenID       string `json:"open_id,omitempty"`
}

// Final 审批已结束（通过或拒绝）
func (e *ApprovalEvent) Final() bool {
	return e.Status == ApprovalStatusApproved || e.Status == ApprovalStatusRejected
}

// URLVerificationEvent URL验证事件
type URLVerificationEvent struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Token     string `json:"token"`
}
