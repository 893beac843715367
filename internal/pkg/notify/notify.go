package notify

import (
	"context"
	log "log/slog"
	"time"
)

// Kind 用户可见通知的错误分类
type Kind int

const (
	// KindTransport 实时通道连接/重连失败，自动恢复
	KindTransport Kind = iota
	// KindRequest REST 调用失败，操作放弃
	KindRequest
	// KindValidation 附件或表单本地校验失败
	KindValidation
	// KindUpload 附件上传失败，发送中止并保留输入
	KindUpload
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRequest:
		return "request"
	case KindValidation:
		return "validation"
	case KindUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// Notice 单条通知
type Notice struct {
	Kind    Kind
	Message string
	Err     error
	At      time.Time
}

// Notifier 统一的用户通知出口
type Notifier interface {
	Notify(n Notice)
}

// Func 函数适配
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

// Discard 丢弃所有通知
var Discard Notifier = Func(func(Notice) {})

// Channel 记录日志并投递到缓冲通道，通道已满时丢弃新通知
type Channel struct {
	C chan Notice
}

// NewChannel 创建带缓冲的通知通道
func NewChannel(size int) *Channel {
	return &Channel{C: make(chan Notice, size)}
}

func (c *Channel) Notify(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	level := log.LevelWarn
	if n.Kind == KindValidation {
		level = log.LevelInfo
	}
	log.Log(context.Background(), level, "chat notice", "kind", n.Kind.String(), "msg", n.Message, "err", n.Err)
	select {
	case c.C <- n:
	default:
	}
}

// Error 便捷构造
func Error(kind Kind, msg string, err error) Notice {
	return Notice{Kind: kind, Message: msg, Err: err, At: time.Now()}
}
