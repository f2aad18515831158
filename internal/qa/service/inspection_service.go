package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/google/uuid"
)

// InspectionService 工厂验货
type InspectionService struct {
	*engine
	risk *RiskService
}

// ScheduleInspectionRequest 安排验货
type ScheduleInspectionRequest struct {
	StyleID     string    `json:"style_id" binding:"required"`
	Type        string    `json:"type" binding:"required"`
	DueDate     time.Time `json:"due_date" binding:"required"`
	InspectorID string    `json:"inspector_id"`
	Notes       string    `json:"notes"`
}

// CompleteInspectionRequest 录入验货结果
type CompleteInspectionRequest struct {
	Result string `json:"result" binding:"required"` // passed/failed
	Notes  string `json:"notes"`
}

var validInspectionTypes = map[string]bool{
	entity.InspectionTypePreProduction: true,
	entity.InspectionTypeInline:        true,
	entity.InspectionTypeFinal:         true,
}

// Schedule 安排验货，工厂取自款式
func (s *InspectionService) Schedule(ctx context.Context, userID string, req *ScheduleInspectionRequest) (*entity.Inspection, error) {
	if !validInspectionTypes[req.Type] {
		return nil, &FieldError{Field: "type", Message: fmt.Sprintf("unknown inspection type %q", req.Type)}
	}
	style, err := s.repos.Style.FindByID(ctx, req.StyleID)
	if err != nil {
		return nil, wrapNotFound(err, "style", req.StyleID)
	}
	if style.FactoryID == "" {
		return nil, &FieldError{Field: "style_id", Message: "style has no factory assigned"}
	}

	code, err := s.repos.Inspection.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	now := s.now()
	inspection := &entity.Inspection{
		ID:             uuid.New().String()[:32],
		InspectionCode: code,
		StyleID:        style.ID,
		FactoryID:      style.FactoryID,
		Type:           req.Type,
		Status:         entity.InspectionStatusScheduled,
		DueDate:        req.DueDate.UTC(),
		InspectorID:    strPtr(req.InspectorID),
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repos.Inspection.Create(ctx, inspection); err != nil {
		return nil, fmt.Errorf("create inspection: %w", err)
	}

	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditInspection,
		EntityID:   inspection.ID,
		EntityCode: code,
		StyleID:    inspection.StyleID,
		Action:     "schedule",
		ToStatus:   inspection.Status,
		Detail:     req.Type,
		OperatorID: userID,
	})
	return inspection, nil
}

// Complete 录入验货结果，已完成的验货不可重复录入
func (s *InspectionService) Complete(ctx context.Context, id, userID string, req *CompleteInspectionRequest) (*entity.Inspection, error) {
	if req.Result != entity.InspectionResultPassed && req.Result != entity.InspectionResultFailed {
		return nil, &FieldError{Field: "result", Message: "result must be passed or failed"}
	}
	inspection, err := s.repos.Inspection.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "inspection", id)
	}
	if inspection.Status == entity.InspectionStatusCompleted {
		return nil, &AlreadyFinalizedError{Entity: "inspection", ID: id}
	}

	now := s.now()
	inspection.Status = entity.InspectionStatusCompleted
	inspection.Result = req.Result
	inspection.InspectedAt = &now
	inspection.UpdatedAt = now
	if req.Notes != "" {
		inspection.Notes = req.Notes
	}
	if err := s.repos.Inspection.Update(ctx, inspection); err != nil {
		return nil, fmt.Errorf("complete inspection: %w", err)
	}

	s.risk.Invalidate(ctx, inspection.FactoryID)
	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditInspection,
		EntityID:   inspection.ID,
		EntityCode: inspection.InspectionCode,
		StyleID:    inspection.StyleID,
		Action:     "complete",
		FromStatus: entity.InspectionStatusScheduled,
		ToStatus:   entity.InspectionStatusCompleted,
		Detail:     req.Result,
		OperatorID: userID,
	})
	return inspection, nil
}

// ListByStyle 款式的验货记录
func (s *InspectionService) ListByStyle(ctx context.Context, styleID string) ([]entity.Inspection, error) {
	if _, err := s.repos.Style.FindByID(ctx, styleID); err != nil {
		return nil, wrapNotFound(err, "style", styleID)
	}
	return s.repos.Inspection.FindByStyle(ctx, styleID)
}
