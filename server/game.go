package server

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Game 组合根：持有玩家注册表、广播总线（即活跃会话集合）与指标
// 加入、移动、离开三类状态转换在同一把锁下串行执行，锁内只有 map 操作与非阻塞入队
type Game struct {
	cfg     GameConfig
	log     *zap.Logger
	metrics *RelayMetrics

	mu       sync.Mutex
	registry *Registry
	bus      *Bus

	sessions sync.WaitGroup
	stopping bool
}

// NewGame 创建游戏服务；log 为 nil 时不输出日志
func NewGame(cfg GameConfig, log *zap.Logger) *Game {
	if log == nil {
		log = zap.NewNop()
	}
	metrics := &RelayMetrics{}
	return &Game{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		registry: NewRegistry(),
		bus:      NewBus(log, metrics),
	}
}

// Accept 为连接创建会话并阻塞驱动到 Closed；每个连接在自己的协程里调用
func (g *Game) Accept(conn Conn) {
	g.mu.Lock()
	if g.stopping {
		g.mu.Unlock()
		_ = conn.Close()
		return
	}
	g.sessions.Add(1)
	g.mu.Unlock()
	defer g.sessions.Done()
	newSession(g, conn).run()
}

// admit 创建玩家、向新连接发送已有玩家快照、加入广播集合并广播自己的加入
// 全部在锁内完成：快照与加入之间不会插入其它玩家的加入或离开
// 服务正在停止时返回 false，不创建玩家
func (g *Game) admit(s *Session) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopping {
		return false
	}

	s.setState(StateAdmitting)
	p := g.registry.Create(g.cfg.Speed, g.cfg.StartX, g.cfg.StartY)
	s.player.Store(int64(p.ID))

	s.setState(StateSyncing)
	snapshot := g.registry.Snapshot()
	// 快照不受发送队列容量限制
	client := NewClientConn(s.conn, g.cfg.SendBuffer+len(snapshot))
	s.client.Store(client)
	for _, other := range snapshot {
		if other.ID == p.ID {
			continue
		}
		b, err := Encode(JoinedFrom(other))
		if err != nil {
			s.log.Error("encode snapshot", zap.Error(err))
			continue
		}
		if err := client.Enqueue(b); err != nil {
			s.log.Warn("sync snapshot", zap.Error(err))
			break
		}
	}

	g.bus.Add(s)
	g.bus.Publish(JoinedFrom(p), nil)
	s.setState(StateActive)
	g.metrics.IncSessionsOpened()
	return true
}

// move 应用移动并广播；玩家已被移除时不做任何事并返回 false
func (g *Game) move(s *Session, dir Direction) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := s.PlayerID()
	x, y, ok := g.registry.ApplyMove(id, dir)
	if !ok {
		return false
	}
	g.bus.Publish(PlayerMoved{ID: id, X: x, Y: y}, nil)
	return true
}

// leave 移出广播集合并删除玩家；只有真正删除了玩家才广播离开，返回是否广播
func (g *Game) leave(s *Session) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bus.Remove(s.PeerID())
	id := s.PlayerID()
	if id == 0 || !g.registry.Remove(id) {
		return false
	}
	g.bus.Publish(PlayerLeft{ID: id}, nil)
	return true
}

// Players 当前玩家快照（按 id 升序）
func (g *Game) Players() []Player {
	return g.registry.Snapshot()
}

// ActiveSessions 可接收广播的会话数
func (g *Game) ActiveSessions() int {
	return g.bus.Len()
}

func (g *Game) Metrics() *RelayMetrics {
	return g.metrics
}

// Shutdown 拒绝新连接并断开所有会话，等待清理完成或 ctx 结束
func (g *Game) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.stopping = true
	peers := g.bus.Peers()
	g.mu.Unlock()
	for _, p := range peers {
		_ = p.Close()
	}
	done := make(chan struct{})
	go func() {
		g.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
