package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var errFakeClosed = errors.New("fake conn closed")

// fakeConn 内存连接：测试往 in 写入客户端消息，从 out 读取服务端下发的消息
type fakeConn struct {
	addr   string
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once

	failWrites atomic.Bool
	// 非 nil 时写入阻塞直到 release 被关闭或连接关闭
	release chan struct{}
}

var fakeConnSeq atomic.Int64

func newFakeConn() *fakeConn {
	return &fakeConn{
		addr:   fmt.Sprintf("fake-%d", fakeConnSeq.Add(1)),
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 1024),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.closed:
		return nil, errFakeClosed
	default:
	}
	select {
	case b := <-c.in:
		return b, nil
	case <-c.closed:
		return nil, errFakeClosed
	}
}

func (c *fakeConn) WriteMessage(b []byte) error {
	if c.failWrites.Load() {
		return errors.New("broken pipe")
	}
	if c.release != nil {
		select {
		case <-c.release:
		case <-c.closed:
			return errFakeClosed
		}
	}
	select {
	case <-c.closed:
		return errFakeClosed
	default:
	}
	select {
	case c.out <- b:
		return nil
	default:
		return errors.New("fake out buffer full")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() string { return c.addr }

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// wireEvent 客户端视角的出站消息
type wireEvent struct {
	Type string `json:"type"`
	Body struct {
		ID PlayerID `json:"id"`
		X  int      `json:"x"`
		Y  int      `json:"y"`
	} `json:"body"`
}

// fataler 同时适配 *testing.T 与 *rapid.T
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

func (c *fakeConn) press(key string) {
	c.in <- []byte(`{"type":"keypressed","body":{"key":"` + key + `"}}`)
}

func (c *fakeConn) next(t fataler) wireEvent {
	t.Helper()
	select {
	case b := <-c.out:
		var ev wireEvent
		if err := json.Unmarshal(b, &ev); err != nil {
			t.Fatalf("decode outbound %s: %v", b, err)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: timed out waiting for event", c.addr)
	}
	return wireEvent{}
}

// nextOf 跳过其它类型，直到收到指定类型的事件
func (c *fakeConn) nextOf(t fataler, typ string) wireEvent {
	t.Helper()
	for {
		ev := c.next(t)
		if ev.Type == typ {
			return ev
		}
	}
}

func (c *fakeConn) expectNone(t fataler, wait time.Duration) {
	t.Helper()
	select {
	case b := <-c.out:
		t.Fatalf("%s: unexpected event %s", c.addr, b)
	case <-time.After(wait):
	}
}

// connect 接入一个新连接，读完 existing 条快照与自己的加入，返回玩家 id
func connect(t fataler, g *Game, existing int) (*fakeConn, PlayerID) {
	t.Helper()
	c := newFakeConn()
	go g.Accept(c)
	for i := 0; i < existing; i++ {
		if ev := c.next(t); ev.Type != TypePlayerJoined {
			t.Fatalf("snapshot %d: got %s", i, ev.Type)
		}
	}
	ev := c.next(t)
	if ev.Type != TypePlayerJoined {
		t.Fatalf("own join: got %s", ev.Type)
	}
	return c, ev.Body.ID
}

func waitFor(t fataler, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func playerIDs(players []Player) []PlayerID {
	ids := make([]PlayerID, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	return ids
}
