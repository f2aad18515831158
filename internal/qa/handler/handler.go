package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/config"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/middleware"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/service"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	Component  *ComponentHandler
	Style      *StyleHandler
	Test       *TestHandler
	Inspection *InspectionHandler
	Supplier   *SupplierHandler
	Derived    *DerivedHandler
	Webhook    *WebhookHandler
	SSE        *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub, feishuCfg config.FeishuConfig, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		Component:  NewComponentHandler(svc.Component, svc.Test),
		Style:      NewStyleHandler(svc),
		Test:       NewTestHandler(svc.Test),
		Inspection: NewInspectionHandler(svc.Inspection),
		Supplier:   NewSupplierHandler(svc.Supplier),
		Derived:    NewDerivedHandler(svc.Risk, svc.Link),
		Webhook:    NewWebhookHandler(svc.GoldSeal, feishuCfg, logger),
		SSE:        NewSSEHandler(hub),
	}
}

// RegisterRoutes 注册路由，webhook不走JWT
func RegisterRoutes(r *gin.Engine, h *Handlers, jwtSecret string) {
	r.POST("/api/v1/qa/webhooks/feishu/approval", h.Webhook.FeishuApproval)

	auth := middleware.JWTAuth(jwtSecret)
	r.GET("/api/v1/sse/events", auth, h.SSE.Stream)

	api := r.Group("/api/v1/qa", auth)
	{
		components := api.Group("/components")
		components.POST("", h.Component.Create)
		components.POST("/import", h.Component.Import)
		components.GET("", h.Component.List)
		components.GET("/:id", h.Component.Get)
		components.PUT("/:id", h.Component.Update)
		components.POST("/:id/approve", middleware.RequireRole(middleware.RoleFabricTechnologist), h.Component.Approve)
		components.POST("/:id/reject", middleware.RequireRole(middleware.RoleFabricTechnologist), h.Component.Reject)
		components.GET("/:id/styles", h.Component.Styles)
		components.GET("/:id/tests", h.Component.Tests)

		styles := api.Group("/styles")
		styles.POST("", h.Style.Create)
		styles.GET("", h.Style.List)
		styles.GET("/:id", h.Style.Get)
		styles.GET("/:id/stage", h.Style.Stage)
		styles.GET("/:id/activity", h.Style.Activity)
		styles.POST("/:id/advance", middleware.RequireRole(middleware.RoleFabricTechnologist, middleware.RoleGarmentTechnologist), h.Style.Advance)
		styles.GET("/:id/components", h.Style.Components)
		styles.POST("/:id/components", h.Style.Link)
		styles.DELETE("/:id/components/:componentId", h.Style.Unlink)
		styles.GET("/:id/tests", h.Style.Tests)
		styles.GET("/:id/inspections", h.Inspection.ListByStyle)
		styles.GET("/:id/compliance", h.Style.Compliance)
		styles.GET("/:id/compliance/export", h.Style.ExportCompliance)
		styles.POST("/:id/gold-seal", h.Style.SubmitGoldSeal)
		styles.GET("/:id/gold-seal", h.Style.GoldSeal)

		api.POST("/links/reconcile", middleware.RequireRole(middleware.RoleAdmin), h.Derived.Reconcile)

		tests := api.Group("/tests")
		tests.POST("", h.Test.Request)
		tests.GET("/:id", h.Test.Get)
		tests.POST("/:id/results", h.Test.RecordResult)
		tests.POST("/:id/attachments", h.Test.Attach)
		tests.GET("/:id/attachments/:attachmentId", h.Test.Download)

		api.GET("/sla", h.Derived.SLA)
		api.GET("/factories/:id/risk", h.Derived.FactoryRisk)

		api.POST("/inspections", h.Inspection.Schedule)
		api.POST("/inspections/:id/complete", h.Inspection.Complete)

		api.POST("/suppliers", middleware.RequireRole(middleware.RoleAdmin), h.Supplier.CreateSupplier)
		api.GET("/suppliers/:id", h.Supplier.GetSupplier)
		api.POST("/factories", middleware.RequireRole(middleware.RoleAdmin), h.Supplier.CreateFactory)
		api.GET("/factories/:id", h.Supplier.GetFactory)
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "success", Data: data})
}

// Error 错误响应，HTTP状态码取code的前三位
func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

// ErrorWithData 携带结构化信息的错误响应
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = http.StatusInternalServerError
	}
	c.JSON(statusCode, Response{Code: code, Message: message, Data: data})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// RespondError 按错误类型映射响应码
func RespondError(c *gin.Context, err error) {
	var (
		validationErr service.ValidationError
		notFoundErr   *service.NotFoundError
		duplicateErr  *service.DuplicateError
		finalizedErr  *service.AlreadyFinalizedError
		invariantErr  *service.InvariantError
		guardErr      *service.GuardError
	)
	switch {
	case errors.As(err, &validationErr):
		ErrorWithData(c, 40001, err.Error(), validationErr)
	case errors.As(err, &notFoundErr):
		ErrorWithData(c, 40400, err.Error(), notFoundErr)
	case errors.As(err, &duplicateErr):
		ErrorWithData(c, 40901, err.Error(), duplicateErr)
	case errors.As(err, &finalizedErr):
		ErrorWithData(c, 40902, err.Error(), finalizedErr)
	case errors.Is(err, service.ErrStageConflict):
		Error(c, 40903, err.Error())
	case errors.As(err, &invariantErr):
		ErrorWithData(c, 42201, err.Error(), invariantErr)
	case errors.As(err, &guardErr):
		ErrorWithData(c, 42202, err.Error(), guardErr)
	case errors.Is(err, service.ErrStorageNotConfigured):
		Error(c, 50300, err.Error())
	default:
		_ = c.Error(err)
		InternalError(c, "internal error")
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}

// queryFilters 收集非空的查询参数
func queryFilters(c *gin.Context, keys ...string) map[string]string {
	filters := make(map[string]string)
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			filters[k] = v
		}
	}
	return filters
}
