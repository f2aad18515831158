package handler

import (
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sseHeartbeatInterval = 30 * time.Second

// SSEHandler 合规变更推送
type SSEHandler struct {
	hub       *sse.Hub
	heartbeat time.Duration
}

func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub, heartbeat: sseHeartbeatInterval}
}

// Stream GET /api/v1/sse/events?token=xxx&style_id=xxx
// style_id为空时订阅全部款式
func (h *SSEHandler) Stream(c *gin.Context) {
	client := &sse.Client{
		ID:      uuid.NewString(),
		UserID:  GetUserID(c),
		StyleID: c.Query("style_id"),
		Events:  make(chan sse.Event, 64),
	}
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID)

	header := c.Writer.Header()
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	h.send(c, "connected", gin.H{"client_id": client.ID, "style_id": client.StyleID})

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			h.send(c, event.EventType, event.Data)
		case at := <-ticker.C:
			h.send(c, "heartbeat", gin.H{"at": at.UTC().Format(time.RFC3339)})
		}
	}
}

func (h *SSEHandler) send(c *gin.Context, name string, data interface{}) {
	c.SSEvent(name, data)
	c.Writer.Flush()
}
