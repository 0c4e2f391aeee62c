package server

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Peer 广播的接收端：一个拥有独立发送队列的连接
type Peer interface {
	PeerID() string
	// Enqueue 非阻塞入队；失败返回 ErrPeerClosed 或 ErrSendQueueFull
	Enqueue(b []byte) error
	// Close 关闭底层连接，由对端自己的读循环发现断开并清理
	Close() error
}

// Bus 将事件扇出到当前已注册的所有对端
// 每个对端一个 FIFO 队列 + 一个写协程，因此同一对端按发布顺序收到事件
type Bus struct {
	mu      sync.RWMutex
	peers   map[string]Peer
	log     *zap.Logger
	metrics *RelayMetrics
}

// NewBus 创建空的广播总线
func NewBus(log *zap.Logger, metrics *RelayMetrics) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = &RelayMetrics{}
	}
	return &Bus{
		peers:   make(map[string]Peer),
		log:     log,
		metrics: metrics,
	}
}

// Add 注册对端，之后的 Publish 会投递给它
func (b *Bus) Add(p Peer) {
	b.mu.Lock()
	b.peers[p.PeerID()] = p
	b.mu.Unlock()
}

// Remove 注销对端；幂等
func (b *Bus) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.peers[id]; !ok {
		return false
	}
	delete(b.peers, id)
	return true
}

// Len 当前对端数
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.peers)
}

// Peers 当前对端的副本
func (b *Bus) Peers() []Peer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Peer, 0, len(b.peers))
	for _, p := range b.peers {
		out = append(out, p)
	}
	return out
}

// Publish 编码一次后投递给除 exclude 外的全部对端
// 单个对端失败只记录日志，不影响其它对端，也不向调用方返回错误
func (b *Bus) Publish(e Event, exclude Peer) {
	payload, err := Encode(e)
	if err != nil {
		b.log.Error("encode event", zap.String("type", e.Type()), zap.Error(err))
		return
	}
	b.metrics.IncEventsPublished()

	var excludeID string
	if exclude != nil {
		excludeID = exclude.PeerID()
	}

	b.mu.RLock()
	targets := make([]Peer, 0, len(b.peers))
	for id, p := range b.peers {
		if exclude != nil && id == excludeID {
			continue
		}
		targets = append(targets, p)
	}
	b.mu.RUnlock()

	for _, p := range targets {
		if err := p.Enqueue(payload); err != nil {
			b.metrics.IncDeliveryFailures()
			b.log.Warn("deliver event",
				zap.String("conn_id", p.PeerID()),
				zap.String("type", e.Type()),
				zap.Error(err),
			)
			if errors.Is(err, ErrSendQueueFull) {
				// 慢消费者：断开连接，由其会话自行走清理流程
				b.metrics.IncSlowConsumers()
				_ = p.Close()
			}
			continue
		}
		b.metrics.IncDeliveries()
	}
}
