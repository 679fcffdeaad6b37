// internal/service/flashsale/interfaces/push_handler.go
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pulsecart/internal/pkg/logger"
	"pulsecart/internal/service/flashsale/domain"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	clientBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 推送网关面向前端页面，接受任意来源
	CheckOrigin: func(r *http.Request) bool { return true },
}

type pushClient struct {
	conn *websocket.Conn
	send chan *domain.ReservationOutcome
}

// PushHub 把结果事件流推送给所有在线的 WebSocket 客户端。
// 慢客户端的事件直接丢弃，推送只保证尽力而为。
type PushHub struct {
	clients    map[*pushClient]bool
	register   chan *pushClient
	unregister chan *pushClient
	outcomes   <-chan *domain.ReservationOutcome
	done       chan struct{}
}

func NewPushHub(outcomes <-chan *domain.ReservationOutcome) *PushHub {
	return &PushHub{
		clients:    make(map[*pushClient]bool),
		register:   make(chan *pushClient),
		unregister: make(chan *pushClient),
		outcomes:   outcomes,
		done:       make(chan struct{}),
	}
}

// Run 是 hub 的主循环，串行化所有对 clients 表的访问。
func (h *PushHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case outcome, ok := <-h.outcomes:
			if !ok {
				return
			}
			for client := range h.clients {
				select {
				case client.send <- outcome:
				default:
					// 发不进去说明客户端写不动了，踢掉
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// ServeWs 把 HTTP 连接升级为 WebSocket 并接入 hub。
func (h *PushHub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := &pushClient{conn: conn, send: make(chan *domain.ReservationOutcome, clientBufSize)}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go h.readPump(client)
}

// readPump 只消费控制帧，业务上客户端不需要发任何东西。
func (h *PushHub) readPump(client *pushClient) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		_ = client.conn.Close()
	}()
	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *pushClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case outcome, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(outcome); err != nil {
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
