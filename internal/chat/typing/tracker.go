package typing

import (
	"Concierge/internal/api/config"
	"time"

	"github.com/raulk/clock"
)

// Tracker 单个会话的双向输入状态，会话切换或界面卸载时整体丢弃
type Tracker struct {
	Out *Outbound
	In  *Inbound
}

// Timing 输入状态相关时长
type Timing struct {
	Idle     time.Duration
	Reassert time.Duration
	Expiry   time.Duration
}

// TimingFrom 从配置读取
func TimingFrom(cfg config.ChatConfig) Timing {
	return Timing{Idle: cfg.TypingIdleTimeout, Reassert: cfg.TypingReassert, Expiry: cfg.TypingExpiry}
}

// NewTracker 构造会话级输入状态
func NewTracker(clk clock.Clock, t Timing, self Self, publish Publish) *Tracker {
	return &Tracker{
		Out: NewOutbound(clk, t.Idle, t.Reassert, publish),
		In:  NewInbound(clk, t.Expiry, self),
	}
}

// Close 停止所有计时器
func (t *Tracker) Close() {
	t.Out.Stop()
	t.In.Reset()
}
