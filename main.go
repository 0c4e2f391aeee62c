package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"posrelay/server"
)

// posrelay 入口：加载配置，启动 WebSocket 转发服务与监控接口
func main() {
	var (
		configPath string
		host       string
		port       int
	)
	flag.StringVar(&configPath, "config", "", "path to YAML config file (optional)")
	flag.StringVar(&host, "host", "", "listen host, overrides listen.host")
	flag.IntVar(&port, "port", 0, "listen port, overrides listen.port")
	flag.Parse()

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if host != "" {
		cfg.Listen.Host = host
	}
	if port != 0 {
		cfg.Listen.Port = port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	logger, err := server.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer server.SyncLogger(logger)
	sugar := logger.Sugar()

	game := server.NewGame(cfg.Game, logger)
	srv := &http.Server{
		Addr:              cfg.Listen.Addr(),
		Handler:           game.NewMux(cfg.Listen.Path),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infof("posrelay listening on ws://%s%s", cfg.Listen.Addr(), cfg.Listen.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return game.RunStatsReporter(ctx, cfg.Admin.StatsInterval)
	})
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// 劫持后的 WebSocket 连接不受 http.Server.Shutdown 管理，需要单独断开
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sugar.Warnf("http shutdown: %v", err)
		}
		return game.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		sugar.Errorf("posrelay stopped: %v", err)
		server.SyncLogger(logger)
		os.Exit(1)
	}
}
