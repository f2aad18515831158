package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/repository"
)

// ValidationError 输入或成分校验失败，直接返回调用方，不做任何修正
type ValidationError interface {
	error
	ValidationField() string
}

// FieldError 普通字段校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *FieldError) ValidationField() string { return e.Field }

// NotFoundError 记录不存在
type NotFoundError struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// DuplicateError 重复申请
type DuplicateError struct {
	Entity     string `json:"entity"`
	Key        string `json:"key"`
	ExistingID string `json:"existing_id"`
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists for %s (id=%s)", e.Entity, e.Key, e.ExistingID)
}

// AlreadyFinalizedError 测试或验货已出结果，不可修改
type AlreadyFinalizedError struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("%s %s is already finalized", e.Entity, e.ID)
}

// InvariantError 违反业务规则
type InvariantError struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Detail)
}

// 业务规则名
const (
	RuleUnlinkAfterBase       = "unlink_after_base"
	RuleEditCompliantMaterial = "edit_compliant_material"
	RuleComponentRejected     = "component_rejected"
	RuleStatusTransition      = "status_transition"
)

// GuardError 阶段推进前置条件不满足
type GuardError struct {
	StyleID             string   `json:"style_id"`
	From                string   `json:"from"`
	To                  string   `json:"to"`
	FailingComponentIDs []string `json:"failing_component_ids"`
	WorkbookRequired    bool     `json:"workbook_required,omitempty"`
	WorkbookApproved    bool     `json:"workbook_approved,omitempty"`
}

func (e *GuardError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "style %s cannot advance from %s to %s", e.StyleID, e.From, e.To)
	if len(e.FailingComponentIDs) > 0 {
		fmt.Fprintf(&b, ": missing evidence for components [%s]", strings.Join(e.FailingComponentIDs, ", "))
	}
	if e.WorkbookRequired && !e.WorkbookApproved {
		b.WriteString(": gold seal workbook not approved")
	}
	return b.String()
}

// wrapNotFound 把仓库层的ErrNotFound转换为NotFoundError
func wrapNotFound(err error, entityName, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Entity: entityName, ID: id}
	}
	return err
}
