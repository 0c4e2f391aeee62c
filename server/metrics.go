package server

import (
	"sync/atomic"
)

// RelayMetrics 记录转发服务运行期的关键指标（用于监控与调试）
type RelayMetrics struct {
	SessionsOpened    int64 // 完成加入的会话数
	SessionsClosed    int64 // 完成清理的会话数
	EventsPublished   int64 // 广播的事件数
	Deliveries        int64 // 成功入队到对端的消息数
	DeliveryFailures  int64 // 入队失败数（对端已关闭或队列满）
	SlowConsumers     int64 // 因发送队列满被断开的对端数
	InputsAccepted    int64 // 被应用的移动输入数
	InputsIgnored     int64 // 未知类型或未知按键
	MalformedMessages int64 // 无法解析的入站消息
}

func (m *RelayMetrics) IncSessionsOpened() { atomic.AddInt64(&m.SessionsOpened, 1) }
func (m *RelayMetrics) IncSessionsClosed() { atomic.AddInt64(&m.SessionsClosed, 1) }
func (m *RelayMetrics) IncEventsPublished() { atomic.AddInt64(&m.EventsPublished, 1) }
func (m *RelayMetrics) IncDeliveries() { atomic.AddInt64(&m.Deliveries, 1) }
func (m *RelayMetrics) IncDeliveryFailures() { atomic.AddInt64(&m.DeliveryFailures, 1) }
func (m *RelayMetrics) IncSlowConsumers() { atomic.AddInt64(&m.SlowConsumers, 1) }
func (m *RelayMetrics) IncInputsAccepted() { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *RelayMetrics) IncInputsIgnored() { atomic.AddInt64(&m.InputsIgnored, 1) }
func (m *RelayMetrics) IncMalformedMessages() { atomic.AddInt64(&m.MalformedMessages, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RelayMetrics) Snapshot() map[string]any {
	return map[string]any{
		"sessions_opened":    atomic.LoadInt64(&m.SessionsOpened),
		"sessions_closed":    atomic.LoadInt64(&m.SessionsClosed),
		"events_published":   atomic.LoadInt64(&m.EventsPublished),
		"deliveries":         atomic.LoadInt64(&m.Deliveries),
		"delivery_failures":  atomic.LoadInt64(&m.DeliveryFailures),
		"slow_consumers":     atomic.LoadInt64(&m.SlowConsumers),
		"inputs_accepted":    atomic.LoadInt64(&m.InputsAccepted),
		"inputs_ignored":     atomic.LoadInt64(&m.InputsIgnored),
		"malformed_messages": atomic.LoadInt64(&m.MalformedMessages),
	}
}
