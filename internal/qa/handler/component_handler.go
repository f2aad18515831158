package handler

import (
	"path/filepath"
	"strings"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/service"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ComponentHandler 组件注册
type ComponentHandler struct {
	svc   *service.ComponentService
	tests *service.TestLedger
}

func NewComponentHandler(svc *service.ComponentService, tests *service.TestLedger) *ComponentHandler {
	return &ComponentHandler{svc: svc, tests: tests}
}

// Create POST /components
func (h *ComponentHandler) Create(c *gin.Context) {
	var req service.CreateComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	component, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, component)
}

// Import POST /components/import （multipart，字段file，.xlsx或.csv）
func (h *ComponentHandler) Import(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	var result *service.ImportResult
	if strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		result, err = h.svc.ImportCSV(c.Request.Context(), GetUserID(c), file)
	} else {
		f, openErr := excelize.OpenReader(file)
		if openErr != nil {
			BadRequest(c, "cannot parse excel file: "+openErr.Error())
			return
		}
		defer f.Close()
		result, err = h.svc.ImportXLSX(c.Request.Context(), GetUserID(c), f)
	}
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// List GET /components?variant=&status=&mill=&keyword=
func (h *ComponentHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	result, err := h.svc.List(c.Request.Context(), page, pageSize, queryFilters(c, "variant", "status", "mill", "keyword"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// Get GET /components/:id
func (h *ComponentHandler) Get(c *gin.Context) {
	component, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, component)
}

// Update PUT /components/:id
func (h *ComponentHandler) Update(c *gin.Context) {
	var req service.UpdateComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	component, err := h.svc.Update(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, component)
}

// Approve POST /components/:id/approve
func (h *ComponentHandler) Approve(c *gin.Context) {
	component, err := h.svc.Approve(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, component)
}

// Reject POST /components/:id/reject
func (h *ComponentHandler) Reject(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	component, err := h.svc.Reject(c.Request.Context(), c.Param("id"), GetUserID(c), req.Reason)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, component)
}

// Styles GET /components/:id/styles
func (h *ComponentHandler) Styles(c *gin.Context) {
	usages, err := h.svc.ListStylesUsingComponent(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": usages})
}

// Tests GET /components/:id/tests
func (h *ComponentHandler) Tests(c *gin.Context) {
	tests, err := h.tests.ListByComponent(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": tests})
}
