package main

import (
	"Concierge/internal/api/config"
	"Concierge/internal/chat/session"
	"Concierge/internal/pkg/attachment"
	"Concierge/internal/pkg/console"
	"Concierge/internal/pkg/logger"
	"Concierge/internal/pkg/notify"
	"Concierge/internal/wire"
	"bufio"
	"context"
	"errors"
	log "log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const help = `commands:
  /open               展开挂件（登录用户直接进入会话）
  /guest <name> [email] 提交访客表单
  /attach <path>      选择附件，下一次发送时上传
  /clear              取消附件
  /scroll <px>        设置滚动位置，接近顶部时加载更早的消息
  /hide               收起挂件
  /new                结束当前会话，下次打开时新建
  /quit               退出
  其它输入作为消息发送`

func main() {
	if err := config.LoadConfig(); err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		panic(err)
	}
	cfg := config.Cfg
	logger.InitLogger(cfg.Logstash)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notices := notify.NewChannel(32)
	deps, cleanup, err := wire.ClientDepsFromConfig(ctx, cfg, cfg.Guest.Token, notices)
	if err != nil {
		log.Error("Fatal error: invalid guest token", "err", err)
		panic(err)
	}
	defer cleanup()

	app := wire.BuildWidget(cfg, deps)
	w := app.Widget
	printer := console.NewPrinter(os.Stdout)
	w.OnChange(func() { printer.Render(w.View()) })
	w.App().OnChange(func(open bool, unread int) {
		if !open && unread > 0 {
			printer.Printf("(%d unread)\n", unread)
		}
	})
	app.Channel.Connect(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printer.Notices(ctx, notices.C)
		return nil
	})
	g.Go(func() error {
		defer stop()
		printer.Printf("%s\n", help)
		if cfg.Guest.Name != "" {
			_ = w.SubmitGuest(ctx, session.GuestForm{Name: cfg.Guest.Name, Email: cfg.Guest.Email})
		}
		return repl(ctx, w)
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Widget exited with error", "err", err)
	}
	if err = w.Close(); err != nil {
		log.Warn("Widget teardown failed", "err", err)
	}
}

func repl(ctx context.Context, w *session.Widget) error {
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
			if quit := handle(ctx, w, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func handle(ctx context.Context, w *session.Widget, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	var err error
	switch cmd {
	case "":
	case "/quit":
		return true
	case "/open":
		err = w.Open(ctx)
		if errors.Is(err, session.ErrGuestFormRequired) {
			log.Info("请先提交访客表单：/guest <name> [email]")
			err = nil
		}
	case "/guest":
		name, email, _ := strings.Cut(arg, " ")
		err = w.SubmitGuest(ctx, session.GuestForm{Name: name, Email: email})
	case "/attach":
		var f attachment.File
		if f, err = attachment.Open(arg); err == nil {
			err = w.Attach(f)
		}
	case "/clear":
		w.ClearAttachment()
	case "/scroll":
		var top float64
		if top, err = strconv.ParseFloat(arg, 64); err == nil {
			err = w.Scroll(ctx, top)
		}
	case "/hide":
		w.Hide()
	case "/new":
		err = w.Forget(ctx)
	default:
		w.Input(line)
		err = w.Send(ctx)
	}
	if err != nil {
		log.Warn("command failed", "cmd", cmd, "err", err)
	}
	return false
}
