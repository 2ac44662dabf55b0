// Package chat 实时中继
// ws_gateway.go
// 核心职责：WebSocket 连接生命周期管理
// 1. 建立 WebSocket 连接 (Upgrade)
// 2. 封装 Client 对象，管理读写协程 (Read/Write Loop)
// 3. 通过 Relay 接口把帧交给具体的中继处理
package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"just_sending_server/pkg/constants"
)

// Relay 中继需要处理的三个连接事件
type Relay interface {
	// OnOpen 连接建立，读写协程启动前调用
	OnOpen(ctx context.Context, c *Client)
	// OnMessage 收到一帧
	OnMessage(ctx context.Context, c *Client, raw []byte)
	// OnClose 读协程退出后调用
	OnClose(ctx context.Context, c *Client)
}

// Client 表示一个 WebSocket 客户端连接
type Client struct {
	// Id 连接 ID，32 位十六进制，只在本进程内有效
	Id string

	conn *websocket.Conn
	send chan []byte   // 发往前端的缓冲通道
	done chan struct{} // 读协程退出时关闭

	closeOnce sync.Once

	mu        sync.RWMutex
	sessionId string // 会话 ID 或安全线路 ID，未加入时为空
}

// 允许任意来源，会话 ID 与校验码就是访问凭证
var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func newConnectionId() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		Id:   newConnectionId(),
		conn: conn,
		send: make(chan []byte, constants.CHANNEL_SIZE),
		done: make(chan struct{}),
	}
}

// SessionId 当前加入的会话 / 线路
func (c *Client) SessionId() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionId
}

// bind 切换会话，返回之前的会话
func (c *Client) bind(sessionId string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.sessionId
	c.sessionId = sessionId
	return prev
}

// Send 非阻塞投递，连接已关闭或缓冲区满时丢弃
func (c *Client) Send(msg Outbound) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("encode frame", zap.String("type", msg.Type), zap.Error(err))
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	case <-c.done:
		return false
	default:
		zap.L().Warn("send buffer full, frame dropped", zap.String("connection_id", c.Id), zap.String("type", msg.Type))
		return false
	}
}

// close 结束连接，写协程随之退出，未发送的帧直接丢弃
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Closed 连接是否已结束
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// read 读协程：读取帧交给 relay，出错即退出
func (c *Client) read(ctx context.Context, relay Relay) {
	c.conn.SetReadLimit(constants.WS_MAX_MESSAGE_SIZE)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Warn("ws read error", zap.String("connection_id", c.Id), zap.Error(err))
			}
			return
		}
		relay.OnMessage(ctx, c, raw)
	}
}

// write 写协程：从 send 通道取帧写入 WebSocket
// done 关闭后立即退出，不再排空通道
func (c *Client) write() {
	defer c.conn.Close()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		default:
		}

		select {
		case <-c.done:
			continue
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WS_WRITE_WAIT))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				zap.L().Warn("ws write error", zap.String("connection_id", c.Id), zap.Error(err))
				c.close()
				return
			}
		}
	}
}

// Serve 升级为 WebSocket 并阻塞直到连接结束
func Serve(w http.ResponseWriter, r *http.Request, relay Relay) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("ws upgrade failed", zap.Error(err))
		return
	}
	ctx := context.Background()
	client := newClient(conn)
	relay.OnOpen(ctx, client)
	zap.L().Info("ws connected", zap.String("connection_id", client.Id))

	go client.write()
	client.read(ctx, relay)

	client.close()
	relay.OnClose(ctx, client)
	zap.L().Info("ws disconnected", zap.String("connection_id", client.Id))
}
