package server

import (
	"encoding/json"
	"errors"
	"fmt"
)

// 出站消息类型
const (
	TypePlayerJoined = "player_joined"
	TypePlayerLeft   = "player_left"
	TypePlayerMoved  = "player_moved"

	// 入站消息类型
	TypeKeyPressed = "keypressed"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownCommand   = errors.New("unknown command")
)

// Event 广播给客户端的领域事件；封闭集合，只有本包内的三种实现
type Event interface {
	Type() string
	body() any
}

// PlayerJoined 玩家加入（或初次同步时的已有玩家）
type PlayerJoined struct {
	ID PlayerID `json:"id"`
	X  int      `json:"x"`
	Y  int      `json:"y"`
}

// PlayerLeft 玩家离开
type PlayerLeft struct {
	ID PlayerID `json:"id"`
}

// PlayerMoved 玩家移动后的坐标
type PlayerMoved struct {
	ID PlayerID `json:"id"`
	X  int      `json:"x"`
	Y  int      `json:"y"`
}

func (PlayerJoined) Type() string { return TypePlayerJoined }
func (PlayerLeft) Type() string { return TypePlayerLeft }
func (PlayerMoved) Type() string { return TypePlayerMoved }

func (e PlayerJoined) body() any { return e }
func (e PlayerLeft) body() any { return e }
func (e PlayerMoved) body() any { return e }

// JoinedFrom 以玩家当前状态构造加入事件
func JoinedFrom(p Player) PlayerJoined {
	return PlayerJoined{ID: p.ID, X: p.X, Y: p.Y}
}

type outboundMessage struct {
	Type string `json:"type"`
	Body any    `json:"body"`
}

// Encode 将事件编码为 {"type":..., "body":{...}} 文本消息
func Encode(e Event) ([]byte, error) {
	if e == nil {
		return nil, errors.New("encode: nil event")
	}
	b, err := json.Marshal(outboundMessage{Type: e.Type(), Body: e.body()})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Type(), err)
	}
	return b, nil
}

// InputMessage 入站消息外层结构
// 示例：{"type":"keypressed","body":{"key":"w"}}
type InputMessage struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// Command 解码后的客户端指令
type Command interface {
	commandType() string
}

// KeyPressed 客户端按键
type KeyPressed struct {
	Key string `json:"key"`
}

func (KeyPressed) commandType() string { return TypeKeyPressed }

// DecodeCommand 解析入站消息；无法解析返回 ErrMalformedMessage，未知类型返回 ErrUnknownCommand
func DecodeCommand(payload []byte) (Command, error) {
	var im InputMessage
	if err := json.Unmarshal(payload, &im); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	switch im.Type {
	case TypeKeyPressed:
		var kp KeyPressed
		if len(im.Body) == 0 {
			return nil, fmt.Errorf("%w: keypressed without body", ErrMalformedMessage)
		}
		if err := json.Unmarshal(im.Body, &kp); err != nil {
			return nil, fmt.Errorf("%w: keypressed body: %v", ErrMalformedMessage, err)
		}
		return kp, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, im.Type)
	}
}

// KeyDirection 按键到方向的映射：w/a/s/d → 上/左/下/右
func KeyDirection(key string) (Direction, bool) {
	switch key {
	case "w":
		return DirUp, true
	case "a":
		return DirLeft, true
	case "s":
		return DirDown, true
	case "d":
		return DirRight, true
	default:
		return DirNone, false
	}
}
