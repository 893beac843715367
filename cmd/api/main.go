package main

import (
	"Concierge/internal/api/config"
	"Concierge/internal/pkg/consts"
	"Concierge/internal/pkg/logger"
	"Concierge/internal/pkg/redis"
	"Concierge/internal/pkg/security"
	"Concierge/internal/service"
	"Concierge/internal/wire"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func main() {
	// 加载配置
	if err := config.LoadConfig(); err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		panic(err)
	}
	cfg := config.Cfg

	// 初始化日志
	logger.InitLogger(cfg.Logstash)

	// 实时通道总线：单实例进程内，多实例走 Redis Pub/Sub
	var bus service.Bus
	if cfg.Server.UseRedis {
		if err := redis.InitRedis(cfg.Redis); err != nil {
			log.Error("Fatal error: failed to create redis connection", "err", err)
			panic(err)
		}
		defer func() { _ = redis.Close() }()
		bus = redis.NewBus()
	}

	// 依赖注入
	app := wire.BuildApplication(cfg, bus)

	// 开发环境管理员 Token，供管理面板联调
	adminToken, err := security.GenerateToken(cfg.Server.JWTSecret, "admin", "Front Desk", "", []string{consts.RoleAdmin})
	if err != nil {
		log.Error("Fatal error: failed to sign admin token", "err", err)
		panic(err)
	}
	log.Info("Dev admin token issued", "token", adminToken)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// HTTP 服务器
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: app.Router,
	}
	g.Go(func() error {
		log.Info("HTTP Server starting...", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 优雅退出
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-ctx.Done():
		case sig := <-quit:
			log.Info("Received signal, shutting down...", "signal", sig)
			cancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP Server shutdown failed", "err", err)
		}
		return nil
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("App exited with error", "err", err)
	}
	log.Info("App exited successfully.")
}
