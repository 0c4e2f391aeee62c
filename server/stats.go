package server

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunStatsReporter 周期性地把指标快照写入日志，直到 ctx 结束
// interval <= 0 时立即返回
func (g *Game) RunStatsReporter(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.logStats()
		case <-ctx.Done():
			return nil
		}
	}
}

func (g *Game) logStats() {
	g.log.Info("relay stats",
		zap.Int("active_sessions", g.ActiveSessions()),
		zap.Int("players", g.registry.Len()),
		zap.Any("metrics", g.metrics.Snapshot()),
	)
}
