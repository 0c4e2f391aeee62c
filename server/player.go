package server

import (
	"sort"
	"sync"
)

// PlayerID 玩家唯一标识，由 Registry 单调分配，进程生命周期内不复用
type PlayerID int64

// Direction 移动方向（服务端权威解释客户端按键）
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "none"
	}
}

// Player 玩家实体（服务端权威状态）；只由 Registry 持有，对外只暴露副本
type Player struct {
	ID    PlayerID `json:"id"`
	X     int      `json:"x"`
	Y     int      `json:"y"`
	Speed int      `json:"speed"`
}

// move 按方向与自身速度移动一步
func (p *Player) move(dir Direction) {
	switch dir {
	case DirUp:
		p.Y -= p.Speed
	case DirDown:
		p.Y += p.Speed
	case DirLeft:
		p.X -= p.Speed
	case DirRight:
		p.X += p.Speed
	default:
		// no-op
	}
}

// Registry 玩家注册表：id 分配与成员关系在同一把锁下维护
type Registry struct {
	mu      sync.RWMutex
	nextID  PlayerID
	players map[PlayerID]*Player
}

// NewRegistry 创建空注册表，id 从 1 开始分配
func NewRegistry() *Registry {
	return &Registry{players: make(map[PlayerID]*Player)}
}

// Create 分配新 id 并插入玩家，永不失败
func (r *Registry) Create(speed, x0, y0 int) Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p := &Player{ID: r.nextID, X: x0, Y: y0, Speed: speed}
	r.players[p.ID] = p
	return *p
}

// Remove 删除玩家；幂等，返回是否真的删除了条目
func (r *Registry) Remove(id PlayerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	return true
}

// Snapshot 返回按 id 升序排列的玩家副本
func (r *Registry) Snapshot() []Player {
	r.mu.RLock()
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ApplyMove 移动玩家并返回新坐标；玩家不存在时 ok=false，调用方不应广播
func (r *Registry) ApplyMove(id PlayerID, dir Direction) (x, y int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return 0, 0, false
	}
	p.move(dir)
	return p.X, p.Y, true
}

// Get 返回玩家副本
func (r *Registry) Get(id PlayerID) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Len 当前玩家数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
