package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkbookApprovals 外部审批流（飞书），为nil时由调用方提供审批实例号
type WorkbookApprovals interface {
	Start(ctx context.Context, submitterOpenID, styleCode, styleName string) (string, error)
	Status(ctx context.Context, instanceCode string) (string, error)
}

// 外部审批状态
const (
	externalApproved = "APPROVED"
	externalRejected = "REJECTED"
)

// GoldSealService 金封样确认书
type GoldSealService struct {
	*engine
	approvals WorkbookApprovals
}

// SubmitWorkbookRequest 提交确认书
type SubmitWorkbookRequest struct {
	ApprovalInstance string `json:"approval_instance"`
	SubmitterOpenID  string `json:"-"`
	SubmittedBy      string `json:"-"`
}

// Submit 提交确认书审批。款式须已达到bulk_approved，同一款式同时只能有一份待审批
func (s *GoldSealService) Submit(ctx context.Context, styleID string, req *SubmitWorkbookRequest) (*entity.GoldSealWorkbook, error) {
	style, err := s.repos.Style.FindByID(ctx, styleID)
	if err != nil {
		return nil, wrapNotFound(err, "style", styleID)
	}
	if entity.StageIndex(style.Stage) < entity.StageIndex(entity.StageBulkApproved) {
		return nil, &InvariantError{
			Rule:   RuleStatusTransition,
			Detail: fmt.Sprintf("style %s is at stage %s; gold seal workbook requires bulk approval first", style.Code, style.Stage),
		}
	}

	latest, err := s.repos.Workbook.FindLatestByStyle(ctx, styleID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find workbook: %w", err)
	}
	if latest != nil && latest.Status != entity.WorkbookStatusRejected {
		return nil, &DuplicateError{Entity: "gold_seal_workbook", Key: styleID, ExistingID: latest.ID}
	}

	instance := req.ApprovalInstance
	if instance == "" && s.approvals != nil {
		instance, err = s.approvals.Start(ctx, req.SubmitterOpenID, style.Code, style.Name)
		if err != nil {
			return nil, fmt.Errorf("start gold seal approval: %w", err)
		}
	}
	if instance == "" {
		instance = "local-" + uuid.New().String()
	}

	now := s.now()
	wb := &entity.GoldSealWorkbook{
		ID:               uuid.New().String()[:32],
		StyleID:          styleID,
		ApprovalInstance: instance,
		Status:           entity.WorkbookStatusSubmitted,
		SubmittedBy:      req.SubmittedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repos.Workbook.Create(ctx, wb); err != nil {
		return nil, fmt.Errorf("create workbook: %w", err)
	}

	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditWorkbook,
		EntityID:   wb.ID,
		EntityCode: style.Code,
		StyleID:    wb.StyleID,
		Action:     "submit",
		ToStatus:   wb.Status,
		Detail:     instance,
		OperatorID: req.SubmittedBy,
	})
	return wb, nil
}

// ApplyDecision 应用审批结果。同一实例只生效一次，重复投递返回changed=false
func (s *GoldSealService) ApplyDecision(ctx context.Context, instanceCode string, approved bool, operatorID string) (*entity.GoldSealWorkbook, bool, error) {
	wb, err := s.repos.Workbook.FindByApprovalInstance(ctx, instanceCode)
	if err != nil {
		return nil, false, wrapNotFound(err, "gold_seal_workbook", instanceCode)
	}
	if wb.Status != entity.WorkbookStatusSubmitted {
		return wb, false, nil
	}

	status := entity.WorkbookStatusRejected
	if approved {
		status = entity.WorkbookStatusApproved
	}
	now := s.now()
	ok, err := s.repos.Workbook.Decide(ctx, wb.ID, status, now)
	if err != nil {
		return nil, false, fmt.Errorf("decide workbook: %w", err)
	}
	if !ok {
		// 并发投递已先一步生效，返回最新结果
		current, err := s.repos.Workbook.FindByApprovalInstance(ctx, instanceCode)
		if err != nil {
			return nil, false, wrapNotFound(err, "gold_seal_workbook", instanceCode)
		}
		return current, false, nil
	}
	wb.Status = status
	wb.DecidedAt = &now
	wb.UpdatedAt = now

	s.logger.Info("gold seal workbook decided",
		zap.String("style_id", wb.StyleID),
		zap.String("instance", instanceCode),
		zap.String("status", wb.Status),
	)
	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditWorkbook,
		EntityID:   wb.ID,
		StyleID:    wb.StyleID,
		Action:     "decide",
		FromStatus: entity.WorkbookStatusSubmitted,
		ToStatus:   wb.Status,
		Detail:     instanceCode,
		OperatorID: operatorID,
	})
	s.publish("workbook_decided", map[string]interface{}{
		"style_id":    wb.StyleID,
		"workbook_id": wb.ID,
		"status":      wb.Status,
	})
	return wb, true, nil
}

// ApplyExternalStatus 按外部审批状态应用结果，非终态忽略
func (s *GoldSealService) ApplyExternalStatus(ctx context.Context, instanceCode, status, operatorID string) (*entity.GoldSealWorkbook, bool, error) {
	switch status {
	case externalApproved:
		return s.ApplyDecision(ctx, instanceCode, true, operatorID)
	case externalRejected:
		return s.ApplyDecision(ctx, instanceCode, false, operatorID)
	}
	return nil, false, nil
}

// Latest 款式最近一份确认书；有外部审批流且仍待审批时主动拉取一次状态
func (s *GoldSealService) Latest(ctx context.Context, styleID string) (*entity.GoldSealWorkbook, error) {
	if _, err := s.repos.Style.FindByID(ctx, styleID); err != nil {
		return nil, wrapNotFound(err, "style", styleID)
	}
	wb, err := s.repos.Workbook.FindLatestByStyle(ctx, styleID)
	if err != nil {
		return nil, wrapNotFound(err, "gold_seal_workbook", styleID)
	}

	if s.approvals != nil && wb.Status == entity.WorkbookStatusSubmitted {
		status, err := s.approvals.Status(ctx, wb.ApprovalInstance)
		if err != nil {
			s.logger.Warn("refresh gold seal approval failed",
				zap.String("instance", wb.ApprovalInstance), zap.Error(err))
			return wb, nil
		}
		if updated, changed, err := s.ApplyExternalStatus(ctx, wb.ApprovalInstance, status, "feishu"); err == nil && changed {
			return updated, nil
		}
	}
	return wb, nil
}

// isWorkbookApproved 款式最近一份确认书是否已通过
func isWorkbookApproved(ctx context.Context, repos *repository.Repositories, styleID string) (bool, error) {
	wb, err := repos.Workbook.FindLatestByStyle(ctx, styleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find workbook: %w", err)
	}
	return wb.Status == entity.WorkbookStatusApproved, nil
}
