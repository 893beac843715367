package session

import (
	"Concierge/internal/chat/conversation"
	"Concierge/internal/chat/store"
	"Concierge/internal/model"
	"Concierge/internal/pkg/notify"
	"context"
	"errors"
	log "log/slog"
	"sync"
)

// DashboardOptions 管理面板参数
type DashboardOptions struct {
	Options
	List *conversation.Controller
	Name string
}

// Dashboard 管理员聊天面板：会话由列表选中产生，历史消息独立分页拉取
type Dashboard struct {
	*surface
	list *conversation.Controller

	selMu  sync.Mutex
	selGen uint64
}

// NewDashboard 构造管理面板
func NewDashboard(opts DashboardOptions) *Dashboard {
	d := &Dashboard{
		surface: newSurface(model.RoleAdmin, opts.Options),
		list:    opts.List,
	}
	d.setName(opts.Name)
	d.surface.onMessage = func(msg model.Message) { d.list.ApplyLiveMessage(msg) }
	d.OnClose(func() error {
		d.list.Close()
		return nil
	})
	return d
}

// List 会话列表控制器
func (d *Dashboard) List() *conversation.Controller {
	return d.list
}

// Select 选中会话：先切换订阅，再标记已读并拉取第 0 页。
// 标记已读失败只提示不回退；被后续选中取代的调用直接返回
func (d *Dashboard) Select(ctx context.Context, sessionID string) error {
	conv, found, gen := d.switchTo(sessionID)

	if found && conv.HasUnread() {
		if err := d.list.MarkRead(ctx, sessionID); err != nil {
			log.WarnContext(ctx, "mark conversation read failed", "session", sessionID, "err", err)
		}
	}
	if !d.isCurrent(gen) {
		return nil
	}

	err := d.opts.Store.LoadPage(ctx, 0)
	switch {
	case err == nil:
		d.changed()
		return nil
	case errors.Is(err, store.ErrStale):
		return nil
	default:
		d.opts.Notifier.Notify(notify.Error(notify.KindRequest, "加载消息失败", err))
		return err
	}
}

// switchTo 列表选中、消息重置与订阅切换作为一步完成
func (d *Dashboard) switchTo(sessionID string) (model.Conversation, bool, uint64) {
	d.selMu.Lock()
	d.selGen++
	gen := d.selGen
	conv, found := d.list.Choose(sessionID)
	d.opts.Store.Reset(sessionID)
	d.bind(sessionID)
	d.selMu.Unlock()

	d.changed()
	return conv, found, gen
}

func (d *Dashboard) isCurrent(gen uint64) bool {
	d.selMu.Lock()
	defer d.selMu.Unlock()
	return d.selGen == gen
}

// closePane 关闭消息窗格并作废在途的选中
func (d *Dashboard) closePane() {
	d.selMu.Lock()
	d.selGen++
	d.list.Deselect()
	d.unbind()
	d.opts.Store.Reset("")
	d.selMu.Unlock()
	d.changed()
}

// Deselect 关闭消息窗格，列表保持
func (d *Dashboard) Deselect() {
	d.closePane()
}

// ToggleStatus 切换当前选中会话的状态
func (d *Dashboard) ToggleStatus(ctx context.Context) (model.ConversationStatus, error) {
	sid := d.SessionID()
	if sid == "" {
		return "", ErrNoSession
	}
	return d.list.ToggleStatus(ctx, sid)
}

// Delete 删除会话；删除的是当前会话时一并关闭消息窗格
func (d *Dashboard) Delete(ctx context.Context, sessionID string) error {
	if err := d.list.Delete(ctx, sessionID); err != nil {
		return err
	}
	if d.SessionID() == sessionID {
		d.closePane()
	}
	return nil
}
