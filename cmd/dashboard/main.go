package main

import (
	"Concierge/internal/api/config"
	"Concierge/internal/chat/conversation"
	"Concierge/internal/chat/session"
	"Concierge/internal/model"
	"Concierge/internal/pkg/attachment"
	"Concierge/internal/pkg/console"
	"Concierge/internal/pkg/cron"
	"Concierge/internal/pkg/logger"
	"Concierge/internal/pkg/notify"
	"Concierge/internal/pkg/security"
	"Concierge/internal/wire"
	"bufio"
	"context"
	"errors"
	log "log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const help = `commands:
  /list                 刷新并显示会话列表
  /more                 加载下一页会话
  /search <text>        按关键字筛选（防抖）
  /status ALL|ACTIVE|RESOLVED
  /select <sessionId>   打开会话
  /close                关闭当前会话窗格
  /toggle               切换当前会话状态
  /delete <sessionId>   删除会话
  /attach <path>        选择附件
  /quit                 退出
  其它输入作为消息发送到当前会话`

func main() {
	if err := config.LoadConfig(); err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		panic(err)
	}
	cfg := config.Cfg
	logger.InitLogger(cfg.Logstash)

	if cfg.Admin.Token == "" {
		log.Error("Fatal error: admin.token is required")
		os.Exit(1)
	}
	id, err := security.IdentityFromToken(cfg.Admin.Token)
	if err != nil {
		log.Error("Fatal error: invalid admin token", "err", err)
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notices := notify.NewChannel(32)
	deps, cleanup, err := wire.ClientDepsFromConfig(ctx, cfg, cfg.Admin.Token, notices)
	if err != nil {
		log.Error("Fatal error: failed to prepare dashboard", "err", err)
		panic(err)
	}
	defer cleanup()

	app := wire.BuildDashboard(cfg, deps, id.Name)
	d := app.Dashboard
	printer := console.NewPrinter(os.Stdout)
	d.OnChange(func() { printer.Render(d.View()) })
	app.Channel.Connect(ctx)

	// 定时刷新会话列表
	if err = cron.InitCron(app.CronMgr); err != nil {
		log.Error("Fatal error: failed to start cron jobs", "err", err)
		panic(err)
	}
	defer app.CronMgr.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printer.Notices(ctx, notices.C)
		return nil
	})
	g.Go(func() error {
		defer stop()
		printer.Printf("%s\n", help)
		if _, err := d.List().Refresh(ctx); err == nil {
			printList(printer, d.List().Snapshot())
		}
		return repl(ctx, printer, d)
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Dashboard exited with error", "err", err)
	}
	if err = d.Close(); err != nil {
		log.Warn("Dashboard teardown failed", "err", err)
	}
}

func repl(ctx context.Context, printer *console.Printer, d *session.Dashboard) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handle(ctx, printer, d, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func handle(ctx context.Context, printer *console.Printer, d *session.Dashboard, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	list := d.List()
	var err error
	switch cmd {
	case "":
	case "/quit":
		return true
	case "/list":
		if _, err = list.Refresh(ctx); err == nil {
			printList(printer, list.Snapshot())
		}
	case "/more":
		if _, err = list.LastRowVisible(ctx); err == nil {
			printList(printer, list.Snapshot())
		}
	case "/search":
		list.SetSearch(ctx, arg)
	case "/status":
		list.SetStatus(ctx, model.StatusFilter(strings.ToUpper(arg)))
	case "/select":
		err = d.Select(ctx, arg)
	case "/close":
		d.Deselect()
	case "/toggle":
		var status model.ConversationStatus
		if status, err = d.ToggleStatus(ctx); err == nil {
			printer.Printf("status -> %s\n", status)
		}
	case "/delete":
		err = d.Delete(ctx, arg)
	case "/attach":
		var f attachment.File
		if f, err = attachment.Open(arg); err == nil {
			err = d.Attach(f)
		}
	default:
		d.Input(line)
		err = d.Send(ctx)
	}
	if err != nil && !errors.Is(err, conversation.ErrStale) {
		log.Warn("command failed", "cmd", cmd, "err", err)
	}
	return false
}

func printList(printer *console.Printer, snap conversation.Snapshot) {
	for _, c := range snap.Items {
		mark := " "
		if c.HasUnread() {
			mark = "*"
		}
		printer.Printf("%s %s  %-20s %-8s %s\n", mark, c.SessionID, c.DisplayName(), c.Status, c.LastMessage)
	}
	if snap.HasNext {
		printer.Printf("  ... /more\n")
	}
}
