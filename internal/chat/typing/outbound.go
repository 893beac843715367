package typing

import (
	"sync"
	"time"

	"github.com/raulk/clock"
)

// Publish 发布本端输入状态
type Publish func(typing bool)

// Outbound 本端输入状态机：idle -> typing -> idle。
// 空闲后的首次输入发布 typing=true；持续输入时每隔 reassert 重申一次；
// 停止输入 idle 后发布一次 typing=false；发送消息立即发布 typing=false 并取消计时。
type Outbound struct {
	clock    clock.Clock
	idle     time.Duration
	reassert time.Duration
	publish  Publish

	mu         sync.Mutex
	typing     bool
	lastAssert time.Time
	timer      *clock.Timer
	seq        uint64
}

// NewOutbound 构造本端状态机
func NewOutbound(clk clock.Clock, idle, reassert time.Duration, publish Publish) *Outbound {
	return &Outbound{clock: clk, idle: idle, reassert: reassert, publish: publish}
}

// InputChanged 输入框内容变化
func (o *Outbound) InputChanged() {
	o.mu.Lock()
	now := o.clock.Now()
	announce := !o.typing || (o.reassert > 0 && now.Sub(o.lastAssert) >= o.reassert)
	o.typing = true
	if announce {
		o.lastAssert = now
	}
	o.armLocked()
	o.mu.Unlock()

	if announce {
		o.publish(true)
	}
}

// Sent 发送消息：取消计时并发布 typing=false
func (o *Outbound) Sent() {
	o.mu.Lock()
	o.stopLocked()
	o.typing = false
	o.mu.Unlock()

	o.publish(false)
}

// Stop 会话切换或卸载时丢弃状态，不发布
func (o *Outbound) Stop() {
	o.mu.Lock()
	o.stopLocked()
	o.typing = false
	o.mu.Unlock()
}

// Typing 当前是否处于输入状态
func (o *Outbound) Typing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.typing
}

func (o *Outbound) armLocked() {
	o.stopLocked()
	seq := o.seq
	o.timer = o.clock.AfterFunc(o.idle, func() { o.expire(seq) })
}

func (o *Outbound) stopLocked() {
	o.seq++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// expire 仅当计时器未被后续输入或发送作废时生效
func (o *Outbound) expire(seq uint64) {
	o.mu.Lock()
	if seq != o.seq || !o.typing {
		o.mu.Unlock()
		return
	}
	o.typing = false
	o.timer = nil
	o.mu.Unlock()

	o.publish(false)
}
