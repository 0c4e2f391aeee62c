package server

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State 会话状态机：Admitting → Syncing → Active → Closing → Closed
type State int32

const (
	StateAdmitting State = iota
	StateSyncing
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAdmitting:
		return "admitting"
	case StateSyncing:
		return "syncing"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session 一条连接的生命周期：加入、输入循环、清理
type Session struct {
	id     string
	game   *Game
	conn   Conn
	client atomic.Pointer[ClientConn]
	player atomic.Int64
	state  atomic.Int32
	log    *zap.Logger

	teardownOnce sync.Once
}

func newSession(g *Game, conn Conn) *Session {
	id := uuid.NewString()
	return &Session{
		id:   id,
		game: g,
		conn: conn,
		log:  g.log.With(zap.String("conn_id", id), zap.String("remote", conn.RemoteAddr())),
	}
}

// PeerID 连接 id（uuid），用作广播总线的键
func (s *Session) PeerID() string { return s.id }

// PlayerID 绑定的玩家 id；加入前为 0
func (s *Session) PlayerID() PlayerID { return PlayerID(s.player.Load()) }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Enqueue 实现 Peer
func (s *Session) Enqueue(b []byte) error {
	c := s.client.Load()
	if c == nil {
		return ErrPeerClosed
	}
	return c.Enqueue(b)
}

// Close 实现 Peer：只断开连接，清理由本会话的读循环触发
func (s *Session) Close() error {
	if c := s.client.Load(); c != nil {
		return c.Kick()
	}
	return s.conn.Close()
}

// run 驱动会话直到 Closed；无论从哪条路径退出都只清理一次
func (s *Session) run() {
	defer s.teardown()

	if !s.game.admit(s) {
		return
	}
	s.log.Info("session active", zap.Int64("player_id", int64(s.PlayerID())))

	go s.client.Load().writePump(func(err error) {
		s.log.Debug("write failed", zap.Error(err))
	})
	s.readLoop()
}

// readLoop 读取客户端输入；解析失败或未知指令直接丢弃，连接错误则返回
func (s *Session) readLoop() {
	for {
		payload, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Debug("read loop ended", zap.Error(err))
			return
		}
		cmd, err := DecodeCommand(payload)
		if err != nil {
			if errors.Is(err, ErrUnknownCommand) {
				s.game.metrics.IncInputsIgnored()
			} else {
				s.game.metrics.IncMalformedMessages()
			}
			s.log.Debug("drop input", zap.Error(err))
			continue
		}
		s.handle(cmd)
	}
}

func (s *Session) handle(cmd Command) {
	switch c := cmd.(type) {
	case KeyPressed:
		dir, ok := KeyDirection(c.Key)
		if !ok {
			s.game.metrics.IncInputsIgnored()
			return
		}
		if s.game.move(s, dir) {
			s.game.metrics.IncInputsAccepted()
		}
	default:
		s.game.metrics.IncInputsIgnored()
	}
}

// teardown 移出广播集合、删除玩家并广播离开，然后释放连接
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.setState(StateClosing)
		left := s.game.leave(s)
		if c := s.client.Load(); c != nil {
			_ = c.Close()
		} else {
			_ = s.conn.Close()
		}
		s.setState(StateClosed)
		s.game.metrics.IncSessionsClosed()
		s.log.Info("session closed",
			zap.Int64("player_id", int64(s.PlayerID())),
			zap.Bool("left_published", left),
		)
	})
}
