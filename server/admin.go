package server

import (
	"encoding/json"
	"net/http"
)

// HandleMetrics 输出运行指标
// GET /metrics
func (g *Game) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	payload := map[string]any{
		"active_sessions": g.ActiveSessions(),
		"players":         g.registry.Len(),
		"metrics":         g.metrics.Snapshot(),
	}
	writeJSON(w, payload)
}

// HandleAdminPlayers 只读的玩家列表，按 id 升序
// GET /admin/players
func (g *Game) HandleAdminPlayers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{"players": g.Players()})
}

// HandleHealthz 存活探针
func HandleHealthz(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// NewMux 注册 WebSocket 接入与监控接口
func (g *Game) NewMux(wsPath string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, g.HandleWS)
	mux.HandleFunc("/metrics", g.HandleMetrics)
	mux.HandleFunc("/admin/players", g.HandleAdminPlayers)
	mux.HandleFunc("/healthz", HandleHealthz)
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
