package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/repository"
	"github.com/google/uuid"
)

// StyleService 款式注册
type StyleService struct {
	*engine
	links *LinkService
}

// CreateStyleRequest 创建款式请求
type CreateStyleRequest struct {
	Name                 string     `json:"name" binding:"required"`
	SupplierID           string     `json:"supplier_id"`
	FactoryID            string     `json:"factory_id"`
	CountryOfOrigin      string     `json:"country_of_origin"`
	FabricTechID         string     `json:"fabric_tech_id"`
	GarmentTechID        string     `json:"garment_tech_id"`
	FabricCutDate        *time.Time `json:"fabric_cut_date"`
	GoldSealDate         *time.Time `json:"gold_seal_date"`
	BaseApprovalRequired *time.Time `json:"base_approval_required"`
	Rush                 bool       `json:"rush"`
	ComponentIDs         []string   `json:"component_ids"`
}

// StyleListResult 款式列表结果
type StyleListResult struct {
	Items      []entity.Style `json:"items"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

// Create 创建款式（阶段为base）并关联初始组件。款式与全部关联在同一事务内写入，
// 任一组件不存在或已驳回时整体回滚
func (s *StyleService) Create(ctx context.Context, userID string, req *CreateStyleRequest) (*entity.Style, error) {
	if req.SupplierID != "" {
		if _, err := s.repos.Supplier.FindByID(ctx, req.SupplierID); err != nil {
			return nil, wrapNotFound(err, "supplier", req.SupplierID)
		}
	}
	if req.FactoryID != "" {
		if _, err := s.repos.Factory.FindByID(ctx, req.FactoryID); err != nil {
			return nil, wrapNotFound(err, "factory", req.FactoryID)
		}
	}
	componentIDs := uniqueIDs(req.ComponentIDs)

	now := s.now()
	style := &entity.Style{
		ID:                   uuid.New().String()[:32],
		Name:                 req.Name,
		SupplierID:           req.SupplierID,
		FactoryID:            req.FactoryID,
		CountryOfOrigin:      req.CountryOfOrigin,
		Stage:                entity.StageBase,
		FabricTechID:         req.FabricTechID,
		GarmentTechID:        req.GarmentTechID,
		FabricCutDate:        req.FabricCutDate,
		GoldSealDate:         req.GoldSealDate,
		BaseApprovalRequired: req.BaseApprovalRequired,
		Rush:                 req.Rush,
		CreatedBy:            userID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	results := make([]*LinkResult, 0, len(componentIDs))
	err := s.inTx(ctx, func(repos *repository.Repositories) error {
		code, err := repos.Style.GenerateCode(ctx)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		style.Code = code
		if err := repos.Style.Create(ctx, style); err != nil {
			return fmt.Errorf("create style: %w", err)
		}
		for _, componentID := range componentIDs {
			if err := checkLinkable(ctx, repos, componentID); err != nil {
				return err
			}
			result, err := s.links.link(ctx, repos, style, componentID, userID)
			if err != nil {
				return err
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditStyle,
		EntityID:   style.ID,
		EntityCode: style.Code,
		StyleID:    style.ID,
		Action:     "create",
		ToStatus:   style.Stage,
		OperatorID: userID,
	})
	for _, result := range results {
		s.links.afterLink(ctx, style, result, userID)
	}
	style.ComponentIDs = componentIDs
	return style, nil
}

// uniqueIDs 去除空值与重复，保持原顺序
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Get 获取款式详情，ComponentIDs由有效关联物化
func (s *StyleService) Get(ctx context.Context, id string) (*entity.Style, error) {
	style, err := s.repos.Style.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "style", id)
	}
	links, err := s.repos.Link.FindActiveByStyle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find links: %w", err)
	}
	style.ComponentIDs = make([]string, 0, len(links))
	for _, l := range links {
		style.ComponentIDs = append(style.ComponentIDs, l.ComponentID)
	}
	return style, nil
}

// Activity 款式履历：款式、关联、测试、验货与金封样的审计记录
func (s *StyleService) Activity(ctx context.Context, id string, limit int) ([]entity.ActivityLog, error) {
	if _, err := s.repos.Style.FindByID(ctx, id); err != nil {
		return nil, wrapNotFound(err, "style", id)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	items, err := s.repos.ActivityLog.ListByStyle(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list style activity: %w", err)
	}
	return items, nil
}

// List 获取款式列表
func (s *StyleService) List(ctx context.Context, page, pageSize int, filters map[string]string) (*StyleListResult, error) {
	items, total, err := s.repos.Style.FindAll(ctx, page, pageSize, filters)
	if err != nil {
		return nil, fmt.Errorf("list styles: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &StyleListResult{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}
