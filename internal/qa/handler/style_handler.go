package handler

import (
	"strconv"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/service"
	"github.com/gin-gonic/gin"
)

// StyleHandler 款式、关联、阶段推进与合规汇总
type StyleHandler struct {
	styles     *service.StyleService
	components *service.ComponentService
	links      *service.LinkService
	tests      *service.TestLedger
	lifecycle  *service.LifecycleService
	summary    *service.SummaryService
	goldSeal   *service.GoldSealService
}

func NewStyleHandler(svc *service.Services) *StyleHandler {
	return &StyleHandler{
		styles:     svc.Style,
		components: svc.Component,
		links:      svc.Link,
		tests:      svc.Test,
		lifecycle:  svc.Lifecycle,
		summary:    svc.Summary,
		goldSeal:   svc.GoldSeal,
	}
}

// Create POST /styles
func (h *StyleHandler) Create(c *gin.Context) {
	var req service.CreateStyleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	style, err := h.styles.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, style)
}

// List GET /styles?stage=&supplier_id=&factory_id=
func (h *StyleHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	result, err := h.styles.List(c.Request.Context(), page, pageSize, queryFilters(c, "stage", "supplier_id", "factory_id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// Get GET /styles/:id
func (h *StyleHandler) Get(c *gin.Context) {
	style, err := h.styles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, style)
}

// Stage GET /styles/:id/stage
func (h *StyleHandler) Stage(c *gin.Context) {
	stage, err := h.lifecycle.GetStage(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"style_id": c.Param("id"), "stage": stage})
}

// Activity GET /styles/:id/activity?limit=50
func (h *StyleHandler) Activity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.styles.Activity(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// Advance POST /styles/:id/advance
func (h *StyleHandler) Advance(c *gin.Context) {
	result, err := h.lifecycle.Advance(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// Components GET /styles/:id/components
func (h *StyleHandler) Components(c *gin.Context) {
	components, err := h.components.FindByStyle(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": components})
}

// Link POST /styles/:id/components
func (h *StyleHandler) Link(c *gin.Context) {
	var req struct {
		ComponentID string `json:"component_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	result, err := h.links.Link(c.Request.Context(), c.Param("id"), req.ComponentID, service.LinkOptions{LinkedBy: GetUserID(c)})
	if err != nil {
		RespondError(c, err)
		return
	}
	if result.Created {
		Created(c, result)
		return
	}
	Success(c, result)
}

// Unlink DELETE /styles/:id/components/:componentId
func (h *StyleHandler) Unlink(c *gin.Context) {
	if err := h.links.Unlink(c.Request.Context(), c.Param("id"), c.Param("componentId"), GetUserID(c)); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, nil)
}

// Tests GET /styles/:id/tests
func (h *StyleHandler) Tests(c *gin.Context) {
	tests, err := h.tests.ListByStyle(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": tests})
}

// Compliance GET /styles/:id/compliance
func (h *StyleHandler) Compliance(c *gin.Context) {
	summary, err := h.summary.GetComplianceSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, summary)
}

// ExportCompliance GET /styles/:id/compliance/export
func (h *StyleHandler) ExportCompliance(c *gin.Context) {
	f, filename, err := h.summary.ExportComplianceXLSX(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}

// SubmitGoldSeal POST /styles/:id/gold-seal
func (h *StyleHandler) SubmitGoldSeal(c *gin.Context) {
	var req service.SubmitWorkbookRequest
	_ = c.ShouldBindJSON(&req)
	req.SubmittedBy = GetUserID(c)
	req.SubmitterOpenID = c.GetString("feishu_open_id")

	wb, err := h.goldSeal.Submit(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, wb)
}

// GoldSeal GET /styles/:id/gold-seal
func (h *StyleHandler) GoldSeal(c *gin.Context) {
	wb, err := h.goldSeal.Latest(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, wb)
}
