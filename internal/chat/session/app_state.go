package session

import "sync"

// AppState 应用根级的挂件状态：是否展开与未读数。
// 随应用创建，由依赖注入传给挂件，切换会话时重置。
type AppState struct {
	mu       sync.Mutex
	open     bool
	unread   int
	onChange func(open bool, unread int)
}

func NewAppState() *AppState {
	return &AppState{}
}

// OnChange 注册状态变化回调
func (a *AppState) OnChange(fn func(open bool, unread int)) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// SetOpen 展开时清零未读
func (a *AppState) SetOpen(open bool) {
	a.mu.Lock()
	a.open = open
	if open {
		a.unread = 0
	}
	a.notifyLocked()
}

// IncUnread 收起状态下收到对方消息
func (a *AppState) IncUnread() {
	a.mu.Lock()
	if a.open {
		a.mu.Unlock()
		return
	}
	a.unread++
	a.notifyLocked()
}

// Reset 切换会话
func (a *AppState) Reset() {
	a.mu.Lock()
	a.unread = 0
	a.notifyLocked()
}

// notifyLocked 释放锁后回调
func (a *AppState) notifyLocked() {
	open, unread, fn := a.open, a.unread, a.onChange
	a.mu.Unlock()
	if fn != nil {
		fn(open, unread)
	}
}

func (a *AppState) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open
}

func (a *AppState) Unread() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unread
}
