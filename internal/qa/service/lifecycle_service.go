package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/repository"
	"go.uber.org/zap"
)

// LifecycleService 款式阶段推进，是Style.stage唯一的写入方
type LifecycleService struct {
	*engine
	links *LinkService
}

// AdvanceResult 推进结果，终态时Changed为false
type AdvanceResult struct {
	StyleID string `json:"style_id"`
	From    string `json:"from"`
	Stage   string `json:"stage"`
	Changed bool   `json:"changed"`
}

// ErrStageConflict 条件更新未命中：阶段在读取后被其他实例修改
var ErrStageConflict = errors.New("style stage changed concurrently")

// Advance 推进到下一阶段。推进前先对该款式执行一次过期降级，
// 再按目标阶段校验证据；product_approved为终态，不报错也不变化。
func (s *LifecycleService) Advance(ctx context.Context, styleID, operatorID string) (*AdvanceResult, error) {
	unlock := s.locks.Lock(styleID)
	defer unlock()

	style, err := s.repos.Style.FindByID(ctx, styleID)
	if err != nil {
		return nil, wrapNotFound(err, "style", styleID)
	}
	next := entity.NextStage(style.Stage)
	if next == "" {
		return &AdvanceResult{StyleID: styleID, From: style.Stage, Stage: style.Stage}, nil
	}

	// 降级结果独立提交，不随守卫失败回滚
	reconciled, err := s.links.reconcile(ctx, s.repos, styleID, s.now())
	if err != nil {
		return nil, err
	}
	s.links.auditExpired(ctx, reconciled)

	from := style.Stage
	err = s.inTx(ctx, func(repos *repository.Repositories) error {
		current, err := repos.Style.FindByID(ctx, styleID)
		if err != nil {
			return wrapNotFound(err, "style", styleID)
		}
		if current.Stage != from {
			return ErrStageConflict
		}
		if err := s.checkGuard(ctx, repos, current, next); err != nil {
			return err
		}

		ok, err := repos.Style.UpdateStage(ctx, styleID, from, next)
		if err != nil {
			return fmt.Errorf("update stage: %w", err)
		}
		if !ok {
			return ErrStageConflict
		}
		return nil
	})
	if err != nil {
		var guardErr *GuardError
		if errors.As(err, &guardErr) {
			s.metrics.GuardFailed(from)
			s.logger.Info("stage guard rejected advance",
				zap.String("style_id", styleID),
				zap.String("from", from),
				zap.Strings("failing_component_ids", guardErr.FailingComponentIDs),
			)
		}
		return nil, err
	}

	s.metrics.StageAdvanced(next)
	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditStyle,
		EntityID:   styleID,
		EntityCode: style.Code,
		StyleID:    styleID,
		Action:     "advance",
		FromStatus: from,
		ToStatus:   next,
		OperatorID: operatorID,
	})
	s.publish("stage_changed", map[string]interface{}{
		"style_id": styleID,
		"from":     from,
		"to":       next,
	})
	return &AdvanceResult{StyleID: styleID, From: from, Stage: next, Changed: true}, nil
}

// checkGuard 校验进入next阶段所需的证据
func (s *LifecycleService) checkGuard(ctx context.Context, repos *repository.Repositories, style *entity.Style, next string) error {
	var levels []string
	checkComposition := false
	requireWorkbook := false

	switch next {
	case entity.StageBaseApproved:
		levels = []string{entity.TestLevelBase}
		checkComposition = true
	case entity.StageBulkApproved:
		levels = []string{entity.TestLevelBulk}
	case entity.StageProductApproved:
		levels = []string{entity.TestLevelBase, entity.TestLevelBulk}
		requireWorkbook = true
	default:
		// 进入bulk、product不设前置条件
		return nil
	}

	links, err := repos.Link.FindActiveByStyle(ctx, style.ID)
	if err != nil {
		return fmt.Errorf("find links: %w", err)
	}

	failing := make([]string, 0)
	for i := range links {
		link := &links[i]
		ok, err := s.linkSatisfies(ctx, repos, link, levels, checkComposition)
		if err != nil {
			return err
		}
		if !ok {
			failing = append(failing, link.ComponentID)
		}
	}

	workbookApproved := false
	if requireWorkbook {
		workbookApproved, err = isWorkbookApproved(ctx, repos, style.ID)
		if err != nil {
			return err
		}
	}

	if len(failing) > 0 || (requireWorkbook && !workbookApproved) {
		return &GuardError{
			StyleID:             style.ID,
			From:                style.Stage,
			To:                  next,
			FailingComponentIDs: failing,
			WorkbookRequired:    requireWorkbook,
			WorkbookApproved:    workbookApproved,
		}
	}
	return nil
}

func (s *LifecycleService) linkSatisfies(ctx context.Context, repos *repository.Repositories, link *entity.StyleComponentLink, levels []string, checkComposition bool) (bool, error) {
	if checkComposition {
		component, err := repos.Component.FindByID(ctx, link.ComponentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("find component: %w", err)
		}
		if component.Status == entity.ComponentStatusRejected {
			return false, nil
		}
		if ValidateFabric(component) != nil {
			return false, nil
		}
	}

	for _, level := range levels {
		passing, err := s.isPassing(ctx, repos, link.ComponentID, link.StyleID, level, link)
		if err != nil {
			return false, err
		}
		if !passing {
			return false, nil
		}
	}
	return true, nil
}

// GetStage 款式当前阶段
func (s *LifecycleService) GetStage(ctx context.Context, styleID string) (string, error) {
	style, err := s.repos.Style.FindByID(ctx, styleID)
	if err != nil {
		return "", wrapNotFound(err, "style", styleID)
	}
	return style.Stage, nil
}
