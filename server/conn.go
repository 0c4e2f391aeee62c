package server

import (
	"errors"
	"sync"
)

var (
	ErrPeerClosed    = errors.New("peer closed")
	ErrSendQueueFull = errors.New("send queue full")
)

// Conn 传输层连接：收发完整的文本消息，分帧与加密由实现负责
// Close 必须能让阻塞中的 ReadMessage 立即返回错误
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(b []byte) error
	Close() error
	RemoteAddr() string
}

// ClientConn 负责发送（写）数据到客户端的轻量包装：有界队列 + 单写协程
type ClientConn struct {
	conn Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewClientConn 创建发送队列，容量至少为 1
func NewClientConn(conn Conn, queueSize int) *ClientConn {
	if queueSize < 1 {
		queueSize = 1
	}
	return &ClientConn{
		conn: conn,
		send: make(chan []byte, queueSize),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞）
// 队列满时返回 ErrSendQueueFull 而不是静默丢弃，丢消息会让客户端状态失步
func (c *ClientConn) Enqueue(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrPeerClosed
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close 关闭发送队列与底层连接；可重复调用
func (c *ClientConn) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		// 关闭发送通道以结束写协程
		close(c.send)
	}
	c.mu.Unlock()
	return c.conn.Close()
}

// Kick 只关闭底层连接，发送队列留给会话清理时关闭
func (c *ClientConn) Kick() error {
	return c.conn.Close()
}

// writePump 独立协程，负责从 send 队列按顺序写出；写失败即关闭连接，
// 读循环随之返回错误并进入清理
func (c *ClientConn) writePump(onError func(error)) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(msg); err != nil {
			if onError != nil {
				onError(err)
			}
			_ = c.conn.Close()
			return
		}
	}
}
