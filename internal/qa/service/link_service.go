package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LinkService 款式-组件关联，负责基础测试继承与过期降级
type LinkService struct {
	*engine
}

// LinkOptions 关联选项
type LinkOptions struct {
	LinkedBy string `json:"linked_by"`
}

// LinkResult 关联结果
type LinkResult struct {
	Link    *entity.StyleComponentLink `json:"link"`
	Created bool                       `json:"created"`
	Renewed bool                       `json:"renewed"`
}

// Link 把组件关联到款式。同一对重复调用返回已有关联；
// 若其他款式已有合规且基础测试未过期的关联，则继承其基础测试。
func (s *LinkService) Link(ctx context.Context, styleID, componentID string, opts LinkOptions) (*LinkResult, error) {
	unlock := s.locks.Lock(styleID)
	var result *LinkResult
	var style *entity.Style
	err := s.inTx(ctx, func(repos *repository.Repositories) error {
		var err error
		style, err = repos.Style.FindByID(ctx, styleID)
		if err != nil {
			return wrapNotFound(err, "style", styleID)
		}
		if err := checkLinkable(ctx, repos, componentID); err != nil {
			return err
		}

		result, err = s.link(ctx, repos, style, componentID, opts.LinkedBy)
		return err
	})
	unlock()
	if err != nil {
		return nil, err
	}

	s.afterLink(ctx, style, result, opts.LinkedBy)
	return result, nil
}

// checkLinkable 组件存在且未被驳回
func checkLinkable(ctx context.Context, repos *repository.Repositories, componentID string) error {
	component, err := repos.Component.FindByID(ctx, componentID)
	if err != nil {
		return wrapNotFound(err, "component", componentID)
	}
	if component.Status == entity.ComponentStatusRejected {
		return &InvariantError{
			Rule:   RuleComponentRejected,
			Detail: fmt.Sprintf("component %s is rejected and cannot be linked", component.Code),
		}
	}
	return nil
}

// afterLink 提交后记录指标、审计并推送
func (s *LinkService) afterLink(ctx context.Context, style *entity.Style, result *LinkResult, linkedBy string) {
	if !result.Created && !result.Renewed {
		return
	}
	link := result.Link
	inherited := link.IsInherited() && link.TUStatus == entity.TUStatusApproved
	s.metrics.LinkCreated(inherited)
	action := "link"
	if result.Renewed {
		action = "renew"
	}
	content := "component linked, fresh testing required"
	if inherited {
		content = fmt.Sprintf("base test inherited from style %s until %s",
			*link.BaseTestCopiedFrom, link.BaseTestExpiresAt.Format("2006-01-02"))
	}
	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditLink,
		EntityID:   link.ID,
		EntityCode: style.Code,
		StyleID:    link.StyleID,
		Action:     action,
		ToStatus:   link.TUStatus,
		Detail:     content,
		OperatorID: linkedBy,
	})
	s.publish("link_changed", map[string]interface{}{
		"style_id":     link.StyleID,
		"component_id": link.ComponentID,
		"link_id":      link.ID,
		"tu_status":    link.TUStatus,
	})
}

func (s *LinkService) link(ctx context.Context, repos *repository.Repositories, style *entity.Style, componentID, linkedBy string) (*LinkResult, error) {
	now := s.now()

	existing, err := repos.Link.FindByPair(ctx, style.ID, componentID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find link: %w", err)
	}

	if existing != nil && existing.IsActive() {
		// 继承已过期的关联，若有新的来源则原地续期
		if existing.TUStatus != entity.TUStatusPending || !existing.IsInherited() {
			return &LinkResult{Link: existing}, nil
		}
		source, err := s.findInheritanceSource(ctx, repos, componentID, style.ID, now)
		if err != nil {
			return nil, err
		}
		if source == nil {
			return &LinkResult{Link: existing}, nil
		}
		months, err := s.expiryMonths(ctx, repos, style.SupplierID)
		if err != nil {
			return nil, err
		}
		inherit(existing, source, now, months)
		ok, err := repos.Link.Save(ctx, existing)
		if err != nil {
			return nil, fmt.Errorf("renew link: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("renew link %s: version conflict", existing.ID)
		}
		return &LinkResult{Link: existing, Renewed: true}, nil
	}

	link := existing
	if link == nil {
		link = &entity.StyleComponentLink{
			ID:          uuid.New().String()[:32],
			StyleID:     style.ID,
			ComponentID: componentID,
			TUStatus:    entity.TUStatusPending,
			LinkedBy:    linkedBy,
		}
	} else {
		// 解除过的关联重新启用，状态按当前证据重新计算
		link.SupersededAt = nil
		link.SupersededBy = ""
		link.TUStatus = entity.TUStatusPending
		link.BaseTestCopiedFrom = nil
		link.BaseTestCopiedAt = nil
		link.BaseTestExpiresAt = nil
	}

	own, err := latestTested(ctx, repos, componentID, style.ID, entity.TestLevelBase)
	if err != nil {
		return nil, err
	}
	if own != nil {
		if own.IsPassing() {
			link.TUStatus = entity.TUStatusApproved
		}
	} else {
		source, err := s.findInheritanceSource(ctx, repos, componentID, style.ID, now)
		if err != nil {
			return nil, err
		}
		if source != nil {
			months, err := s.expiryMonths(ctx, repos, style.SupplierID)
			if err != nil {
				return nil, err
			}
			inherit(link, source, now, months)
		}
	}

	if existing == nil {
		if err := repos.Link.Create(ctx, link); err != nil {
			return nil, fmt.Errorf("create link: %w", err)
		}
		return &LinkResult{Link: link, Created: true}, nil
	}

	ok, err := repos.Link.Save(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("relink: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("relink %s: version conflict", link.ID)
	}
	return &LinkResult{Link: link, Renewed: true}, nil
}

func inherit(link, source *entity.StyleComponentLink, now time.Time, months int) {
	from := source.StyleID
	link.TUStatus = entity.TUStatusApproved
	link.BaseTestCopiedFrom = &from
	link.BaseTestCopiedAt = timePtr(now)
	link.BaseTestExpiresAt = timePtr(now.AddDate(0, months, 0))
}

// findInheritanceSource 最新的可继承关联：已合规、非继承、其自身基础测试通过且未过期
func (s *LinkService) findInheritanceSource(ctx context.Context, repos *repository.Repositories, componentID, styleID string, now time.Time) (*entity.StyleComponentLink, error) {
	candidates, err := repos.Link.FindInheritanceCandidates(ctx, componentID, styleID)
	if err != nil {
		return nil, fmt.Errorf("find inheritance candidates: %w", err)
	}

	for i := range candidates {
		candidate := &candidates[i]
		test, err := latestTested(ctx, repos, componentID, candidate.StyleID, entity.TestLevelBase)
		if err != nil {
			return nil, err
		}
		if test == nil || !test.IsPassing() || test.TestDate == nil {
			continue
		}

		sourceStyle, err := repos.Style.FindByID(ctx, candidate.StyleID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("find source style: %w", err)
		}
		months, err := s.expiryMonths(ctx, repos, sourceStyle.SupplierID)
		if err != nil {
			return nil, err
		}
		if !now.Before(test.TestDate.AddDate(0, months, 0)) {
			continue
		}
		return candidate, nil
	}
	return nil, nil
}

// expiryMonths 供应商测试有效期，未设置时使用默认值
func (e *engine) expiryMonths(ctx context.Context, repos *repository.Repositories, supplierID string) (int, error) {
	if supplierID == "" {
		return e.cfg.DefaultTestExpiryMonths, nil
	}
	supplier, err := repos.Supplier.FindByID(ctx, supplierID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return e.cfg.DefaultTestExpiryMonths, nil
		}
		return 0, fmt.Errorf("find supplier: %w", err)
	}
	if supplier.TestExpiryMonths <= 0 {
		return e.cfg.DefaultTestExpiryMonths, nil
	}
	return supplier.TestExpiryMonths, nil
}

// latestTested 三元组最近一次出结果的测试，不存在返回nil
func latestTested(ctx context.Context, repos *repository.Repositories, componentID, styleID, level string) (*entity.ComponentTest, error) {
	test, err := repos.Test.FindLatestTested(ctx, componentID, styleID, level)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find latest test: %w", err)
	}
	return test, nil
}

// Unlink 解除关联，仅在base阶段允许，只做标记保留历史
func (s *LinkService) Unlink(ctx context.Context, styleID, componentID, operatorID string) error {
	unlock := s.locks.Lock(styleID)
	var link *entity.StyleComponentLink
	var style *entity.Style
	err := s.inTx(ctx, func(repos *repository.Repositories) error {
		var err error
		style, err = repos.Style.FindByID(ctx, styleID)
		if err != nil {
			return wrapNotFound(err, "style", styleID)
		}
		if style.Stage != entity.StageBase {
			return &InvariantError{
				Rule:   RuleUnlinkAfterBase,
				Detail: fmt.Sprintf("style %s is at stage %s; components can only be unlinked at base", style.Code, style.Stage),
			}
		}

		link, err = repos.Link.FindByPair(ctx, styleID, componentID)
		if err != nil {
			return wrapNotFound(err, "link", styleID+"/"+componentID)
		}
		if !link.IsActive() {
			return &NotFoundError{Entity: "link", ID: styleID + "/" + componentID}
		}

		link.SupersededAt = timePtr(s.now())
		link.SupersededBy = operatorID
		ok, err := repos.Link.Save(ctx, link)
		if err != nil {
			return fmt.Errorf("unlink: %w", err)
		}
		if !ok {
			return fmt.Errorf("unlink %s: version conflict", link.ID)
		}
		return nil
	})
	unlock()
	if err != nil {
		return err
	}

	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditLink,
		EntityID:   link.ID,
		EntityCode: style.Code,
		StyleID:    link.StyleID,
		Action:     "unlink",
		FromStatus: link.TUStatus,
		Detail:     "component unlinked",
		OperatorID: operatorID,
	})
	s.publish("link_changed", map[string]interface{}{
		"style_id":     styleID,
		"component_id": componentID,
		"link_id":      link.ID,
		"superseded":   true,
	})
	return nil
}

// ReconcileResult 过期降级结果
type ReconcileResult struct {
	Scanned    int      `json:"scanned"`
	Downgraded []string `json:"downgraded"`
	Conflicts  int      `json:"conflicts"`

	styleOf map[string]string
}

// ReconcileExpirations 把继承已过期的合规关联降级为pending，继承信息保留。
// 按版本CAS写入，并发续期的关联不会被覆盖；重复执行无副作用。
func (s *LinkService) ReconcileExpirations(ctx context.Context, asOf time.Time) (*ReconcileResult, error) {
	start := time.Now()
	result, err := s.reconcile(ctx, s.repos, "", asOf)
	s.metrics.ObserveReconcile(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if len(result.Downgraded) > 0 {
		s.logger.Info("reconciled expired links",
			zap.Int("scanned", result.Scanned),
			zap.Int("downgraded", len(result.Downgraded)),
			zap.Int("conflicts", result.Conflicts),
		)
		s.auditExpired(ctx, result)
		s.publish("links_expired", map[string]interface{}{"link_ids": result.Downgraded})
	}
	return result, nil
}

func (s *LinkService) auditExpired(ctx context.Context, result *ReconcileResult) {
	for _, id := range result.Downgraded {
		s.audit(ctx, entity.ActivityLog{
			EntityType: entity.AuditLink,
			EntityID:   id,
			StyleID:    result.styleOf[id],
			Action:     "expire",
			FromStatus: entity.TUStatusApproved,
			ToStatus:   entity.TUStatusPending,
			Detail:     "inherited base test expired",
			OperatorID: "system",
		})
	}
}

// ReconcileNow 以当前时间执行过期降级，供定时任务与运维接口调用
func (s *LinkService) ReconcileNow(ctx context.Context) (*ReconcileResult, error) {
	return s.ReconcileExpirations(ctx, s.now())
}

// reconcile 可限定单个款式，供阶段推进前调用
func (s *LinkService) reconcile(ctx context.Context, repos *repository.Repositories, styleID string, asOf time.Time) (*ReconcileResult, error) {
	links, err := repos.Link.FindExpirable(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("find expirable links: %w", err)
	}

	result := &ReconcileResult{Downgraded: []string{}, styleOf: make(map[string]string)}
	for i := range links {
		link := &links[i]
		if !link.InheritanceExpired(asOf) {
			continue
		}
		result.Scanned++
		ok, err := repos.Link.DowngradeIfUnchanged(ctx, link.ID, link.Version, asOf)
		if err != nil {
			return nil, fmt.Errorf("downgrade link %s: %w", link.ID, err)
		}
		if !ok {
			result.Conflicts++
			s.metrics.CASConflict()
			continue
		}
		result.Downgraded = append(result.Downgraded, link.ID)
		result.styleOf[link.ID] = link.StyleID
		s.metrics.LinkExpired()
	}
	return result, nil
}

// ActiveLinks 款式当前的有效关联
func (s *LinkService) ActiveLinks(ctx context.Context, styleID string) ([]entity.StyleComponentLink, error) {
	if _, err := s.repos.Style.FindByID(ctx, styleID); err != nil {
		return nil, wrapNotFound(err, "style", styleID)
	}
	return s.repos.Link.FindActiveByStyle(ctx, styleID)
}
