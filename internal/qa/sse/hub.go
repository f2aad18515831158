package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event 推送给客户端的SSE事件
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client 已连接的SSE客户端，StyleID非空时只接收该款式的事件
type Client struct {
	ID      string
	UserID  string
	StyleID string
	Events  chan Event
}

// Hub 管理SSE连接，实现合规引擎的变更通知
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("sse client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.String("style_id", client.StyleID),
		zap.Int("total", len(h.clients)))
}

// Unregister 注销客户端并关闭其事件通道
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("sse client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast 发送给所有匹配的客户端，缓冲区满时丢弃，不阻塞调用方
func (h *Hub) Broadcast(event Event, styleID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.StyleID != "" && client.StyleID != styleID {
			continue
		}
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("sse client buffer full, skipping event",
				zap.String("client_id", client.ID), zap.String("event", event.EventType))
		}
	}
}

// Publish 序列化payload后广播，payload中的style_id用于按款式过滤
func (h *Hub) Publish(eventType string, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("sse marshal payload failed", zap.String("event", eventType), zap.Error(err))
		return
	}
	styleID, _ := payload["style_id"].(string)
	h.Broadcast(Event{EventType: eventType, Data: string(data)}, styleID)
}
