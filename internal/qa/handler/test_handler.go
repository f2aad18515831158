package handler

import (
	"io"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/service"
	"github.com/gin-gonic/gin"
)

// maxReportSize 实验室报告上限
const maxReportSize = 20 << 20

// TestHandler 组件测试台账
type TestHandler struct {
	svc *service.TestLedger
}

func NewTestHandler(svc *service.TestLedger) *TestHandler {
	return &TestHandler{svc: svc}
}

// Request POST /tests
func (h *TestHandler) Request(c *gin.Context) {
	var req service.RequestTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	req.RequestedBy = GetUserID(c)

	test, err := h.svc.RequestTest(c.Request.Context(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, test)
}

// Get GET /tests/:id
func (h *TestHandler) Get(c *gin.Context) {
	test, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, test)
}

// RecordResult POST /tests/:id/results
func (h *TestHandler) RecordResult(c *gin.Context) {
	var req service.RecordResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	req.RecordedBy = GetUserID(c)

	test, err := h.svc.RecordResult(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, test)
}

// Attach POST /tests/:id/attachments （multipart，字段file）
func (h *TestHandler) Attach(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}
	if header.Size > maxReportSize {
		BadRequest(c, "file exceeds 20MB")
		return
	}
	file, err := header.Open()
	if err != nil {
		InternalError(c, "read upload: "+err.Error())
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	attachment, err := h.svc.AttachReport(c.Request.Context(), c.Param("id"), header.Filename, contentType, header.Size, file, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, attachment)
}

// Download GET /tests/:id/attachments/:attachmentId
func (h *TestHandler) Download(c *gin.Context) {
	reader, attachment, err := h.svc.OpenReport(c.Request.Context(), c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		RespondError(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Type", attachment.ContentType)
	c.Header("Content-Disposition", "attachment; filename=\""+attachment.Name+"\"")
	if _, err := io.Copy(c.Writer, reader); err != nil {
		_ = c.Error(err)
	}
}
