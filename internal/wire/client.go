package wire

import (
	"Concierge/internal/api/config"
	"Concierge/internal/pkg/minio"
	"Concierge/internal/pkg/notify"
	"Concierge/internal/pkg/redis"
	"Concierge/internal/pkg/security"
	"context"
	log "log/slog"
	"time"
)

// ClientDepsFromConfig 按配置初始化客户端协作者：Token 身份、Redis 会话续接、MinIO 附件存储。
// Redis 与 MinIO 不可用时降级为进程内会话记录与不可上传，返回的 cleanup 释放连接。
func ClientDepsFromConfig(ctx context.Context, cfg *config.Config, token string, notifier notify.Notifier) (ClientDeps, func(), error) {
	deps := ClientDeps{Notifier: notifier}
	cleanup := func() {}

	identity := &security.StaticIdentity{}
	if token != "" {
		id, err := security.IdentityFromToken(token)
		if err != nil {
			return deps, cleanup, err
		}
		identity.Set(id)
	}
	deps.Identity = identity

	if cfg.Server.UseRedis {
		if err := redis.InitRedis(cfg.Redis); err != nil {
			log.Warn("redis unavailable, guest sessions kept in memory", "err", err)
		} else {
			ttl := time.Duration(cfg.Chat.SessionRememberHours) * time.Hour
			deps.Sessions = redis.NewSessionStore(ttl)
			cleanup = func() { _ = redis.Close() }
		}
	}

	if cfg.MinIO.Endpoint != "" {
		initCtx, cancel := context.WithTimeout(ctx, cfg.Backend.Timeout)
		defer cancel()
		uploader, err := minio.NewUploader(initCtx, cfg.MinIO)
		if err != nil {
			log.Warn("minio unavailable, attachments disabled", "err", err)
		} else {
			deps.Uploader = uploader
		}
	}
	return deps, cleanup, nil
}
