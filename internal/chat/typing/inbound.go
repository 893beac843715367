package typing

import (
	"Concierge/internal/model"
	"sync"
	"time"

	"github.com/raulk/clock"
)

// Indicator 对端输入状态
type Indicator struct {
	SenderName string
	Typing     bool
}

// Self 本端身份，用于过滤回显的输入信号
type Self struct {
	Role model.SenderRole
	Name string
}

// Inbound 反映对端最近一次推送的输入信号；未收到刷新超过 expiry 时视为停止输入
type Inbound struct {
	clock  clock.Clock
	expiry time.Duration
	self   Self

	mu       sync.Mutex
	current  Indicator
	timer    *clock.Timer
	seq      uint64
	onChange func(Indicator)
}

// NewInbound 构造对端状态
func NewInbound(clk clock.Clock, expiry time.Duration, self Self) *Inbound {
	return &Inbound{clock: clk, expiry: expiry, self: self}
}

// OnChange 注册状态变化回调
func (i *Inbound) OnChange(fn func(Indicator)) {
	i.mu.Lock()
	i.onChange = fn
	i.mu.Unlock()
}

// IsSelf 信号是否来自本端：有角色时按角色判断，否则按名称
func (i *Inbound) IsSelf(sig model.TypingSignal) bool {
	if sig.SenderType != "" && i.self.Role != "" {
		return sig.SenderType == i.self.Role
	}
	return sig.SenderName != "" && sig.SenderName == i.self.Name
}

// Receive 处理推送的输入信号
func (i *Inbound) Receive(sig model.TypingSignal) {
	if i.IsSelf(sig) {
		return
	}

	i.mu.Lock()
	i.seq++
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	next := Indicator{}
	if sig.Typing {
		next = Indicator{SenderName: sig.SenderName, Typing: true}
		if i.expiry > 0 {
			seq := i.seq
			i.timer = i.clock.AfterFunc(i.expiry, func() { i.expire(seq) })
		}
	}
	changed := next != i.current
	i.current = next
	fn := i.onChange
	i.mu.Unlock()

	if changed && fn != nil {
		fn(next)
	}
}

// Current 当前展示状态
func (i *Inbound) Current() Indicator {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

// Reset 丢弃状态与计时器
func (i *Inbound) Reset() {
	i.mu.Lock()
	i.seq++
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	i.current = Indicator{}
	i.mu.Unlock()
}

func (i *Inbound) expire(seq uint64) {
	i.mu.Lock()
	if seq != i.seq || !i.current.Typing {
		i.mu.Unlock()
		return
	}
	i.current = Indicator{}
	i.timer = nil
	fn := i.onChange
	i.mu.Unlock()

	if fn != nil {
		fn(Indicator{})
	}
}
