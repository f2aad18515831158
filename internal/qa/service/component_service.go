package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/repository"
	"github.com/google/uuid"
)

// ComponentService 组件注册
type ComponentService struct {
	*engine
	links *LinkService
}

// FibreInput 面料成分输入
type FibreInput struct {
	FibreType   string `json:"fibre_type" binding:"required"`
	Percentage  int    `json:"percentage"`
	Sustainable bool   `json:"sustainable"`
	Recycled    bool   `json:"recycled"`
}

// CreateComponentRequest 创建组件请求，成分可以暂不完整
type CreateComponentRequest struct {
	Variant        string       `json:"variant" binding:"required"`
	Name           string       `json:"name"`
	Mill           string       `json:"mill"`
	OriginCountry  string       `json:"origin_country"`
	ReferenceCode  string       `json:"reference_code"`
	SupplierID     string       `json:"supplier_id"`
	Sustainable    bool         `json:"sustainable"`
	Regenerative   bool         `json:"regenerative"`
	ReachCompliant bool         `json:"reach_compliant"`
	Composition    []FibreInput `json:"composition"`
	Construction   string       `json:"construction"`
	WeightGSM      *int         `json:"weight_gsm"`
	WidthCM        *int         `json:"width_cm"`
	DyeMethod      string       `json:"dye_method"`
	TrimType       string       `json:"trim_type"`
	Size           string       `json:"size"`
	Material       string       `json:"material"`
	Colour         string       `json:"colour"`
}

// UpdateComponentRequest 更新组件请求，nil表示不修改
type UpdateComponentRequest struct {
	Name           *string       `json:"name"`
	Mill           *string       `json:"mill"`
	OriginCountry  *string       `json:"origin_country"`
	ReferenceCode  *string       `json:"reference_code"`
	Sustainable    *bool         `json:"sustainable"`
	Regenerative   *bool         `json:"regenerative"`
	ReachCompliant *bool         `json:"reach_compliant"`
	Composition    *[]FibreInput `json:"composition"`
	Construction   *string       `json:"construction"`
	WeightGSM      *int          `json:"weight_gsm"`
	WidthCM        *int          `json:"width_cm"`
	DyeMethod      *string       `json:"dye_method"`
	TrimType       *string       `json:"trim_type"`
	Size           *string       `json:"size"`
	Material       *string       `json:"material"`
	Colour         *string       `json:"colour"`
}

// onlyAddsFlags 补丁是否只把合规标记置为true
func (r *UpdateComponentRequest) onlyAddsFlags() bool {
	if r.Name != nil || r.Mill != nil || r.OriginCountry != nil || r.ReferenceCode != nil ||
		r.Composition != nil || r.Construction != nil || r.WeightGSM != nil || r.WidthCM != nil ||
		r.DyeMethod != nil || r.TrimType != nil || r.Size != nil || r.Material != nil || r.Colour != nil {
		return false
	}
	for _, flag := range []*bool{r.Sustainable, r.Regenerative, r.ReachCompliant} {
		if flag != nil && !*flag {
			return false
		}
	}
	return true
}

// ComponentListResult 组件列表结果
type ComponentListResult struct {
	Items      []entity.Component `json:"items"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

func toComposition(inputs []FibreInput) []entity.FibreComposition {
	composition := make([]entity.FibreComposition, 0, len(inputs))
	for _, in := range inputs {
		composition = append(composition, entity.FibreComposition{
			FibreType:   in.FibreType,
			Percentage:  in.Percentage,
			Sustainable: in.Sustainable,
			Recycled:    in.Recycled,
		})
	}
	return composition
}

// checkDraftComposition 草稿允许合计不足100，但每项必须在0-100之间
func checkDraftComposition(composition []entity.FibreComposition) error {
	for _, fc := range composition {
		if fc.FibreType == "" {
			return &FieldError{Field: "composition.fibre_type", Message: "fibre type is required"}
		}
		if fc.Percentage < 0 || fc.Percentage > 100 {
			return &CompositionError{Kind: CompositionOutOfRange, FibreType: fc.FibreType}
		}
	}
	return nil
}

// Create 创建组件，状态为pending
func (s *ComponentService) Create(ctx context.Context, userID string, req *CreateComponentRequest) (*entity.Component, error) {
	if req.Variant != entity.ComponentVariantFabric && req.Variant != entity.ComponentVariantTrim {
		return nil, &FieldError{Field: "variant", Message: fmt.Sprintf("unknown component variant %q", req.Variant)}
	}

	component := &entity.Component{
		ID:             uuid.New().String()[:32],
		Variant:        req.Variant,
		Name:           req.Name,
		Mill:           req.Mill,
		OriginCountry:  req.OriginCountry,
		ReferenceCode:  req.ReferenceCode,
		SupplierID:     strPtr(req.SupplierID),
		Sustainable:    req.Sustainable,
		Regenerative:   req.Regenerative,
		ReachCompliant: req.ReachCompliant,
		Status:         entity.ComponentStatusPending,
		Colour:         req.Colour,
		CreatedBy:      userID,
	}
	if component.IsFabric() {
		component.Composition = toComposition(req.Composition)
		component.Construction = req.Construction
		component.WeightGSM = req.WeightGSM
		component.WidthCM = req.WidthCM
		component.DyeMethod = req.DyeMethod
		if err := checkDraftComposition(component.Composition); err != nil {
			return nil, err
		}
	} else {
		component.TrimType = req.TrimType
		component.Size = req.Size
		component.Material = req.Material
	}

	code, err := s.repos.Component.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	component.Code = code

	now := s.now()
	component.CreatedAt = now
	component.UpdatedAt = now
	if err := s.repos.Component.Create(ctx, component); err != nil {
		return nil, fmt.Errorf("create component: %w", err)
	}

	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditComponent,
		EntityID:   component.ID,
		EntityCode: component.Code,
		Action:     "create",
		ToStatus:   component.Status,
		OperatorID: userID,
	})
	return component, nil
}

// Update 更新组件。被合规关联引用的组件只允许补充合规标记
func (s *ComponentService) Update(ctx context.Context, id, userID string, req *UpdateComponentRequest) (*entity.Component, error) {
	var component *entity.Component
	err := s.inTx(ctx, func(repos *repository.Repositories) error {
		var err error
		component, err = repos.Component.FindByID(ctx, id)
		if err != nil {
			return wrapNotFound(err, "component", id)
		}

		approvedLinks, err := repos.Link.CountApprovedByComponent(ctx, id)
		if err != nil {
			return fmt.Errorf("count approved links: %w", err)
		}
		if approvedLinks > 0 && !req.onlyAddsFlags() {
			return &InvariantError{
				Rule:   RuleEditCompliantMaterial,
				Detail: fmt.Sprintf("component %s is referenced by %d approved link(s); only compliance flags may be added", component.Code, approvedLinks),
			}
		}

		applyComponentPatch(component, req)
		if req.Composition != nil && component.IsFabric() {
			if err := checkDraftComposition(component.Composition); err != nil {
				return err
			}
			// 已审批的面料修改成分后仍须满足100%
			if component.Status == entity.ComponentStatusApproved {
				if err := ValidateComposition(component.Composition); err != nil {
					return err
				}
			}
		}

		component.UpdatedAt = s.now()
		if err := repos.Component.Update(ctx, component); err != nil {
			return fmt.Errorf("update component: %w", err)
		}
		if req.Composition != nil && component.IsFabric() {
			if err := repos.Component.ReplaceComposition(ctx, component); err != nil {
				return fmt.Errorf("replace composition: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditComponent,
		EntityID:   component.ID,
		EntityCode: component.Code,
		Action:     "update",
		OperatorID: userID,
	})
	return component, nil
}

func applyComponentPatch(c *entity.Component, req *UpdateComponentRequest) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&c.Name, req.Name)
	setString(&c.Mill, req.Mill)
	setString(&c.OriginCountry, req.OriginCountry)
	setString(&c.ReferenceCode, req.ReferenceCode)
	setString(&c.Colour, req.Colour)

	if req.Sustainable != nil {
		c.Sustainable = *req.Sustainable
	}
	if req.Regenerative != nil {
		c.Regenerative = *req.Regenerative
	}
	if req.ReachCompliant != nil {
		c.ReachCompliant = *req.ReachCompliant
	}

	if c.IsFabric() {
		if req.Composition != nil {
			c.Composition = toComposition(*req.Composition)
		}
		setString(&c.Construction, req.Construction)
		setString(&c.DyeMethod, req.DyeMethod)
		if req.WeightGSM != nil {
			c.WeightGSM = req.WeightGSM
		}
		if req.WidthCM != nil {
			c.WidthCM = req.WidthCM
		}
		return
	}
	setString(&c.TrimType, req.TrimType)
	setString(&c.Size, req.Size)
	setString(&c.Material, req.Material)
}

// Approve 审批组件，面料必须通过成分校验
func (s *ComponentService) Approve(ctx context.Context, id, userID string) (*entity.Component, error) {
	component, err := s.repos.Component.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "component", id)
	}
	if component.Status == entity.ComponentStatusApproved {
		return component, nil
	}
	if component.Status == entity.ComponentStatusRejected {
		return nil, &InvariantError{
			Rule:   RuleStatusTransition,
			Detail: fmt.Sprintf("component %s is rejected", component.Code),
		}
	}
	if err := ValidateFabric(component); err != nil {
		return nil, err
	}

	from := component.Status
	now := s.now()
	component.Status = entity.ComponentStatusApproved
	component.ApprovedBy = strPtr(userID)
	component.ApprovedAt = &now
	component.UpdatedAt = now
	if err := s.repos.Component.Update(ctx, component); err != nil {
		return nil, fmt.Errorf("approve component: %w", err)
	}

	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditComponent,
		EntityID:   component.ID,
		EntityCode: component.Code,
		Action:     "approve",
		FromStatus: from,
		ToStatus:   component.Status,
		OperatorID: userID,
	})
	return component, nil
}

// Reject 驳回组件，组件不删除以保证历史关联可追溯
func (s *ComponentService) Reject(ctx context.Context, id, userID, reason string) (*entity.Component, error) {
	component, err := s.repos.Component.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "component", id)
	}
	if component.Status == entity.ComponentStatusRejected {
		return component, nil
	}

	from := component.Status
	component.Status = entity.ComponentStatusRejected
	component.UpdatedAt = s.now()
	if err := s.repos.Component.Update(ctx, component); err != nil {
		return nil, fmt.Errorf("reject component: %w", err)
	}

	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditComponent,
		EntityID:   component.ID,
		EntityCode: component.Code,
		Action:     "reject",
		FromStatus: from,
		ToStatus:   component.Status,
		Detail:     reason,
		OperatorID: userID,
	})
	return component, nil
}

// Get 获取组件详情
func (s *ComponentService) Get(ctx context.Context, id string) (*entity.Component, error) {
	component, err := s.repos.Component.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "component", id)
	}
	return component, nil
}

// List 获取组件列表
func (s *ComponentService) List(ctx context.Context, page, pageSize int, filters map[string]string) (*ComponentListResult, error) {
	items, total, err := s.repos.Component.FindAll(ctx, page, pageSize, filters)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &ComponentListResult{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// FindByStyle 款式的物料清单，按关联顺序
func (s *ComponentService) FindByStyle(ctx context.Context, styleID string) ([]entity.Component, error) {
	links, err := s.links.ActiveLinks(ctx, styleID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ComponentID)
	}
	components, err := s.repos.Component.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find components: %w", err)
	}

	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	sort.SliceStable(components, func(i, j int) bool {
		return order[components[i].ID] < order[components[j].ID]
	})
	return components, nil
}

// StyleUsage 使用某组件的款式及该款式下的合规状态
type StyleUsage struct {
	Style *entity.Style             `json:"style"`
	Link  entity.StyleComponentLink `json:"link"`
}

// ListStylesUsingComponent 使用该组件的全部款式
func (s *ComponentService) ListStylesUsingComponent(ctx context.Context, componentID string) ([]StyleUsage, error) {
	if _, err := s.repos.Component.FindByID(ctx, componentID); err != nil {
		return nil, wrapNotFound(err, "component", componentID)
	}
	links, err := s.repos.Link.FindActiveByComponent(ctx, componentID)
	if err != nil {
		return nil, fmt.Errorf("find links: %w", err)
	}

	usages := make([]StyleUsage, 0, len(links))
	for _, l := range links {
		style, err := s.repos.Style.FindByID(ctx, l.StyleID)
		if err != nil {
			return nil, wrapNotFound(err, "style", l.StyleID)
		}
		usages = append(usages, StyleUsage{Style: style, Link: l})
	}
	return usages, nil
}
