package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 没有鉴权需求：允许所有来源
		return true
	},
}

// wsConn 将 gorilla/websocket 连接适配为 Conn：文本帧、写超时、ping/pong 保活
type wsConn struct {
	ws        *websocket.Conn
	writeWait time.Duration
	pongWait  time.Duration
	log       *zap.Logger

	stop      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn, cfg GameConfig, log *zap.Logger) *wsConn {
	c := &wsConn{
		ws:        ws,
		writeWait: cfg.WriteWait,
		pongWait:  cfg.PongWait,
		log:       log,
		stop:      make(chan struct{}),
	}
	if cfg.ReadLimit > 0 {
		ws.SetReadLimit(cfg.ReadLimit)
	}
	if c.pongWait > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(c.pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(c.pongWait))
		})
		go c.pingLoop()
	}
	return c
}

// pingLoop 周期发送 ping；WriteControl 可与写协程并发调用
func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer ticker.Stop()
	wait := c.writeWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(wait)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = c.Close()
				return
			}
		case <-c.stop:
			return
		}
	}
}

// ReadMessage 读取下一条文本/二进制消息，控制帧由 gorilla 内部处理
func (c *wsConn) ReadMessage() ([]byte, error) {
	_, payload, err := c.ws.ReadMessage()
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.log.Info("unexpected close", zap.String("remote", c.RemoteAddr()), zap.Error(err))
	}
	return payload, err
}

func (c *wsConn) WriteMessage(b []byte) error {
	if c.writeWait > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
			return err
		}
	}
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// HandleWS WebSocket 接入：升级后在当前 handler 协程内驱动会话直到断开
func (g *Game) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("upgrade", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	g.Accept(newWSConn(ws, g.cfg, g.log))
}
