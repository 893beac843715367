package console

import (
	"Concierge/internal/chat/session"
	"Concierge/internal/chat/transport"
	"Concierge/internal/pkg/notify"
	"context"
	"fmt"
	"io"
	"sync"
)

// Printer 终端渲染：只输出新增的已确认消息、连接状态与输入状态的变化
type Printer struct {
	out io.Writer

	mu      sync.Mutex
	session string
	seen    map[string]bool
	state   transport.State
	typing  string
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, seen: make(map[string]bool)}
}

// Render 输出视图相对上次渲染的增量
func (p *Printer) Render(v session.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v.SessionID != p.session {
		p.session = v.SessionID
		p.seen = make(map[string]bool)
		if v.SessionID != "" {
			fmt.Fprintf(p.out, "== session %s ==\n", v.SessionID)
		}
	}
	if v.State != p.state {
		p.state = v.State
		fmt.Fprintf(p.out, "[%s]\n", v.State)
	}

	for _, m := range v.Messages {
		if m.Pending || p.seen[m.ID] {
			continue
		}
		p.seen[m.ID] = true
		body := m.Content
		if m.FileURL != "" {
			body += " <" + m.FileURL + ">"
		}
		fmt.Fprintf(p.out, "%s %s(%s): %s\n", m.CreatedAt.Local().Format("15:04"), m.SenderName, m.SenderType, body)
	}

	typing := ""
	if v.Typing.Typing {
		typing = v.Typing.SenderName
	}
	if typing != p.typing {
		p.typing = typing
		if typing != "" {
			fmt.Fprintf(p.out, "... %s is typing\n", typing)
		}
	}
}

// Notices 持续输出通知，直到 ctx 结束
func (p *Printer) Notices(ctx context.Context, ch <-chan notify.Notice) {
	for {
		var n notify.Notice
		select {
		case <-ctx.Done():
			return
		case n = <-ch:
		}
		p.mu.Lock()
		if n.Err != nil {
			fmt.Fprintf(p.out, "! [%s] %s: %v\n", n.Kind, n.Message, n.Err)
		} else {
			fmt.Fprintf(p.out, "! [%s] %s\n", n.Kind, n.Message)
		}
		p.mu.Unlock()
	}
}

// Printf 与渲染共享输出锁
func (p *Printer) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}
