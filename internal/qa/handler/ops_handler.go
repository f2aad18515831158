package handler

import (
	"strconv"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/service"
	"github.com/gin-gonic/gin"
)

// ============================================================
// Derived Handler（SLA、风险、过期降级）
// ============================================================

type DerivedHandler struct {
	risk  *service.RiskService
	links *service.LinkService
}

func NewDerivedHandler(risk *service.RiskService, links *service.LinkService) *DerivedHandler {
	return &DerivedHandler{risk: risk, links: links}
}

// SLA GET /sla?due_date=2026-01-02T15:04:05Z&rush=true
func (h *DerivedHandler) SLA(c *gin.Context) {
	raw := c.Query("due_date")
	if raw == "" {
		BadRequest(c, "due_date is required")
		return
	}
	due, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		if due, err = time.Parse("2006-01-02", raw); err != nil {
			BadRequest(c, "due_date must be RFC3339 or YYYY-MM-DD")
			return
		}
	}
	rush, _ := strconv.ParseBool(c.DefaultQuery("rush", "false"))
	Success(c, h.risk.EvaluateSLA(due.UTC(), rush))
}

// FactoryRisk GET /factories/:id/risk
func (h *DerivedHandler) FactoryRisk(c *gin.Context) {
	risk, err := h.risk.FactoryRisk(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, risk)
}

// Reconcile POST /links/reconcile
func (h *DerivedHandler) Reconcile(c *gin.Context) {
	result, err := h.links.ReconcileNow(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// ============================================================
// Inspection Handler
// ============================================================

type InspectionHandler struct {
	svc *service.InspectionService
}

func NewInspectionHandler(svc *service.InspectionService) *InspectionHandler {
	return &InspectionHandler{svc: svc}
}

// Schedule POST /inspections
func (h *InspectionHandler) Schedule(c *gin.Context) {
	var req service.ScheduleInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	inspection, err := h.svc.Schedule(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, inspection)
}

// Complete POST /inspections/:id/complete
func (h *InspectionHandler) Complete(c *gin.Context) {
	var req service.CompleteInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	inspection, err := h.svc.Complete(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, inspection)
}

// ListByStyle GET /styles/:id/inspections
func (h *InspectionHandler) ListByStyle(c *gin.Context) {
	items, err := h.svc.ListByStyle(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// ============================================================
// Supplier Handler
// ============================================================

type SupplierHandler struct {
	svc *service.SupplierService
}

func NewSupplierHandler(svc *service.SupplierService) *SupplierHandler {
	return &SupplierHandler{svc: svc}
}

// CreateSupplier POST /suppliers
func (h *SupplierHandler) CreateSupplier(c *gin.Context) {
	var req service.CreateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	supplier, err := h.svc.CreateSupplier(c.Request.Context(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, supplier)
}

// GetSupplier GET /suppliers/:id
func (h *SupplierHandler) GetSupplier(c *gin.Context) {
	supplier, err := h.svc.GetSupplier(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, supplier)
}

// CreateFactory POST /factories
func (h *SupplierHandler) CreateFactory(c *gin.Context) {
	var req service.CreateFactoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	factory, err := h.svc.CreateFactory(c.Request.Context(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, factory)
}

// GetFactory GET /factories/:id
func (h *SupplierHandler) GetFactory(c *gin.Context) {
	factory, err := h.svc.GetFactory(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, factory)
}
