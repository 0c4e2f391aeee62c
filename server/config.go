package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ListenConfig 监听地址与 WebSocket 路径
type ListenConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Path string `mapstructure:"path"`
}

// Addr 返回 host:port
func (l ListenConfig) Addr() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// GameConfig 玩家出生参数与每连接的传输参数
type GameConfig struct {
	Speed      int           `mapstructure:"speed"`
	StartX     int           `mapstructure:"start_x"`
	StartY     int           `mapstructure:"start_y"`
	SendBuffer int           `mapstructure:"send_buffer"` // 每连接发送队列容量
	WriteWait  time.Duration `mapstructure:"write_wait"`
	PongWait   time.Duration `mapstructure:"pong_wait"` // 0 表示不做心跳超时
	ReadLimit  int64         `mapstructure:"read_limit"`
}

// LoggingConfig 日志级别、格式与滚动文件
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"` // 为空则输出到 stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// AdminConfig 监控相关
type AdminConfig struct {
	StatsInterval time.Duration `mapstructure:"stats_interval"` // 0 关闭周期统计日志
}

// Config 顶层配置
type Config struct {
	Listen  ListenConfig  `mapstructure:"listen"`
	Game    GameConfig    `mapstructure:"game"`
	Logging LoggingConfig `mapstructure:"logging"`
	Admin   AdminConfig   `mapstructure:"admin"`
}

// DefaultGameConfig 与 LoadConfig 的默认值一致，便于测试和嵌入使用
func DefaultGameConfig() GameConfig {
	return GameConfig{
		Speed:      4,
		StartX:     0,
		StartY:     0,
		SendBuffer: 256,
		WriteWait:  10 * time.Second,
		PongWait:   60 * time.Second,
		ReadLimit:  4096,
	}
}

// Validate 检查全部配置项，一次返回所有问题
func (c Config) Validate() error {
	var errs []string
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Sprintf("listen.port must be 1-65535, got %d", c.Listen.Port))
	}
	if !strings.HasPrefix(c.Listen.Path, "/") {
		errs = append(errs, fmt.Sprintf("listen.path must start with /, got %q", c.Listen.Path))
	}
	if c.Game.Speed < 1 {
		errs = append(errs, fmt.Sprintf("game.speed must be positive, got %d", c.Game.Speed))
	}
	if c.Game.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("game.send_buffer must be positive, got %d", c.Game.SendBuffer))
	}
	if c.Game.WriteWait < 0 {
		errs = append(errs, "game.write_wait must not be negative")
	}
	if c.Game.PongWait < 0 {
		errs = append(errs, "game.pong_wait must not be negative")
	}
	if c.Game.ReadLimit < 0 {
		errs = append(errs, "game.read_limit must not be negative")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, console], got %q", c.Logging.Format))
	}
	if c.Admin.StatsInterval < 0 {
		errs = append(errs, "admin.stats_interval must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadConfig 读取默认值、可选的 YAML 文件（path 为空则跳过）与 POSRELAY_ 前缀的环境变量
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POSRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen.host", "localhost")
	v.SetDefault("listen.port", 8765)
	v.SetDefault("listen.path", "/ws")

	g := DefaultGameConfig()
	v.SetDefault("game.speed", g.Speed)
	v.SetDefault("game.start_x", g.StartX)
	v.SetDefault("game.start_y", g.StartY)
	v.SetDefault("game.send_buffer", g.SendBuffer)
	v.SetDefault("game.write_wait", g.WriteWait.String())
	v.SetDefault("game.pong_wait", g.PongWait.String())
	v.SetDefault("game.read_limit", g.ReadLimit)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 7)

	v.SetDefault("admin.stats_interval", "30s")
}
