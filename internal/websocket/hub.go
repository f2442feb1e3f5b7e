package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"educonsult/backend/internal/domain"
	"educonsult/backend/internal/monitoring"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	heartbeatEvery = 30 * time.Second
	sendBuffer     = 256
)

// ErrHubStopped 表示 Hub 已停止，不再接收事件
var ErrHubStopped = errors.New("websocket hub stopped")

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// 如果允许所有来源
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			// 没有 Origin 的请求来自非浏览器客户端
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeContactCreated       MessageType = MessageType(domain.EventContactCreated)
	MessageTypeContactStatusUpdated MessageType = MessageType(domain.EventContactStatusUpdated)
	MessageTypePing                 MessageType = "ping"
	MessageTypePong                 MessageType = "pong"
	MessageTypeError                MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个后台监听连接
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

type reply struct {
	client *Client
	data   []byte
}

// Hub 管理所有WebSocket连接，把联系事件推送给后台页面
type Hub struct {
	clients        map[string]*Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan []byte
	replies        chan reply
	done           chan struct{}
	mu             sync.RWMutex
	log            *zap.Logger
	metrics        *monitoring.Metrics
	allowedOrigins []string
}

// NewHub 创建WebSocket Hub
//
// allowedOrigins 与 CORS 配置相同，为空时允许所有来源。
func NewHub(allowedOrigins []string, metrics *monitoring.Metrics, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan []byte, sendBuffer),
		replies:        make(chan reply, sendBuffer),
		done:           make(chan struct{}),
		log:            log,
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
	}
}

// Run 启动Hub，ctx 结束时关闭全部连接
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAllClients()
			h.log.Info("websocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.UpdateWebsocketClients(count)
			h.log.Info("client registered", zap.String("id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.UpdateWebsocketClients(count)

		case data := <-h.broadcast:
			h.broadcastToAll(data)

		case r := <-h.replies:
			// 客户端可能已注销，send 通道已关闭
			h.mu.RLock()
			if _, ok := h.clients[r.client.ID]; ok {
				h.sendTo(r.client, r.data)
			}
			h.mu.RUnlock()

		case <-ticker.C:
			// 定期ping所有客户端
			h.broadcastToAll(h.encode(&Message{Type: MessageTypePing, Timestamp: time.Now().UTC()}))
		}
	}
}

// Name 实现 notify.Sink
func (h *Hub) Name() string { return "websocket" }

// Deliver 把联系事件推送给所有在线监听者
func (h *Hub) Deliver(ctx context.Context, event domain.ContactEvent) error {
	contact, err := json.Marshal(event.Contact)
	if err != nil {
		return err
	}

	data := h.encode(&Message{
		Type:      MessageType(event.Type),
		Data:      contact,
		Timestamp: event.OccurredAt,
	})
	if data == nil {
		return errors.New("failed to encode websocket message")
	}

	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount 返回在线连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) encode(msg *Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return nil
	}
	return data
}

// broadcastToAll 只在 Run 协程中调用
func (h *Hub) broadcastToAll(data []byte) {
	if data == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		h.sendTo(client, data)
	}
}

func (h *Hub) sendTo(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.metrics.UpdateWebsocketClients(0)
}

// HandleWebSocket 升级为 WebSocket 连接并注册监听者
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, sendBuffer),
			hub:  hub,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 读取客户端消息，连接断开时注销
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket error", zap.String("clientID", c.ID), zap.Error(err))
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump 把 send 通道中的消息写到连接，并定期发送协议层 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理客户端消息，只支持心跳
func (c *Client) handleMessage(msg *Message) {
	var out *Message
	switch msg.Type {
	case MessageTypePing:
		out = &Message{Type: MessageTypePong, Timestamp: time.Now().UTC()}
	case MessageTypePong:
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return
	default:
		out = &Message{Type: MessageTypeError, Error: "unsupported message type", Timestamp: time.Now().UTC()}
	}

	data := c.hub.encode(out)
	if data == nil {
		return
	}
	select {
	case c.hub.replies <- reply{client: c, data: data}:
	case <-c.hub.done:
	}
}
