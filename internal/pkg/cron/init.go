package cron

import log "log/slog"

// InitCron 注册并启动定时任务；未配置刷新周期时不启动引擎
func InitCron(mgr *Manager) error {
	if mgr.refreshSpec == "" {
		log.Info("conversation list refresh disabled")
		return nil
	}
	log.Info("Cron Jobs starting...", "refresh", mgr.refreshSpec)
	if err := mgr.RegisterJobs(); err != nil {
		return err
	}
	mgr.Start()
	return nil
}
