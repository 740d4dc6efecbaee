package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/slot-simulator/internal/logger"
)

// 消息类型
const (
	MessageTypeConnected    = "connected"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeProgress     = "progress"
	MessageTypeRunStarted   = "run_started"
	MessageTypeRunCompleted = "run_completed"
	MessageTypeRunFailed    = "run_failed"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Message 推送给客户端的消息
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ProgressHub 模拟进度推送中心
// 订阅/ws/progress的客户端会收到所有运行的进度与完成消息
type ProgressHub struct {
	clients    map[string]*progressClient
	clientsMu  sync.RWMutex
	broadcast  chan *Message
	register   chan *progressClient
	unregister chan *progressClient
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

type progressClient struct {
	id   string
	hub  *ProgressHub
	conn *websocket.Conn
	send chan []byte
}

// NewProgressHub 创建进度推送中心
func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		clients:    make(map[string]*progressClient),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *progressClient),
		unregister: make(chan *progressClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 模拟器只在内网环境运行
				return true
			},
		},
		log: logger.GetModuleLogger("websocket"),
	}
}

// Run 运行消息分发主循环
func (h *ProgressHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client.id] = client
			h.clientsMu.Unlock()
			h.log.Info("进度订阅客户端连接", zap.String("client_id", client.id))

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.clientsMu.Unlock()
			h.log.Info("进度订阅客户端断开", zap.String("client_id", client.id))

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Broadcast 向全部订阅客户端广播消息
func (h *ProgressHub) Broadcast(msgType string, data interface{}) {
	msg := &Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("广播通道已满，丢弃消息", zap.String("type", msgType))
	}
}

// ClientCount 当前订阅客户端数
func (h *ProgressHub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// ServeWS 将HTTP请求升级为WebSocket连接
func (h *ProgressHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket升级失败", zap.Error(err))
		return
	}

	client := &progressClient{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()

	connected, _ := json.Marshal(&Message{
		Type:      MessageTypeConnected,
		Timestamp: time.Now().Unix(),
	})
	client.send <- connected
}

func (h *ProgressHub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("序列化消息失败", zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.log.Warn("客户端发送缓冲区满", zap.String("client_id", client.id))
		}
	}
}

// readPump 消费客户端消息，进度流只接受pong
func (c *progressClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error("WebSocket读取错误",
					zap.String("client_id", c.id),
					zap.Error(err))
			}
			break
		}
	}
}

// writePump 向客户端写消息并维持心跳
func (c *progressClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
