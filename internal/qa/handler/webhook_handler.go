package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/config"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/service"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/shared/feishu"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookHandler 飞书审批回调，驱动金封样确认书结果
type WebhookHandler struct {
	goldSeal *service.GoldSealService
	cfg      config.FeishuConfig
	logger   *zap.Logger
}

func NewWebhookHandler(goldSeal *service.GoldSealService, cfg config.FeishuConfig, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{goldSeal: goldSeal, cfg: cfg, logger: logger}
}

// FeishuApproval POST /webhooks/feishu/approval
// 飞书要求回调尽快返回200，业务上无法处理的事件只记日志
func (h *WebhookHandler) FeishuApproval(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		BadRequest(c, "read body: "+err.Error())
		return
	}

	if feishu.IsVerificationEvent(body) {
		challenge, err := feishu.HandleVerification(body, h.cfg.VerificationToken)
		if err != nil {
			h.respondWebhookError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"challenge": challenge})
		return
	}

	event, err := feishu.ParseApprovalEvent(body, h.cfg.VerificationToken)
	if err != nil {
		h.respondWebhookError(c, err)
		return
	}

	if h.cfg.GoldSealApprovalCode != "" && event.ApprovalCode != h.cfg.GoldSealApprovalCode {
		h.logger.Debug("ignore approval event for other definition",
			zap.String("approval_code", event.ApprovalCode), zap.String("instance", event.InstanceCode))
		Success(c, gin.H{"handled": false})
		return
	}
	if !event.Final() {
		Success(c, gin.H{"handled": false})
		return
	}

	wb, changed, err := h.goldSeal.ApplyExternalStatus(c.Request.Context(), event.InstanceCode, event.Status, "feishu:"+event.OpenID)
	if err != nil {
		var notFound *service.NotFoundError
		if errors.As(err, &notFound) {
			h.logger.Warn("approval event for unknown workbook", zap.String("instance", event.InstanceCode))
			Success(c, gin.H{"handled": false})
			return
		}
		h.logger.Error("apply gold seal decision failed", zap.String("instance", event.InstanceCode), zap.Error(err))
		InternalError(c, "apply decision failed")
		return
	}

	h.logger.Info("feishu approval event applied",
		zap.String("event_id", event.EventID),
		zap.String("instance", event.InstanceCode),
		zap.String("status", event.Status),
		zap.Bool("changed", changed))
	Success(c, gin.H{"handled": true, "changed": changed, "workbook": wb})
}

func (h *WebhookHandler) respondWebhookError(c *gin.Context, err error) {
	if errors.Is(err, feishu.ErrInvalidToken) {
		h.logger.Warn("feishu webhook token mismatch", zap.String("ip", c.ClientIP()))
		Error(c, 40100, err.Error())
		return
	}
	BadRequest(c, err.Error())
}
