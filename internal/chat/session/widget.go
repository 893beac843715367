package session

import (
	"Concierge/internal/model"
	"Concierge/internal/pkg/notify"
	"Concierge/internal/pkg/security"
	"Concierge/internal/pkg/util"
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"
)

// ErrGuestFormRequired 匿名访客需先填写称呼
var ErrGuestFormRequired = errors.New("guest name required before chat")

// WidgetAPI 访客端用到的后端接口
type WidgetAPI interface {
	InitChat(ctx context.Context, in model.InitRequest) (*model.InitResult, error)
	MarkChatRead(ctx context.Context, sessionID string) error
}

// GuestForm 访客表单
type GuestForm struct {
	Name  string `validate:"required,max=64"`
	Email string `validate:"omitempty,email"`
}

// WidgetOptions 挂件参数
type WidgetOptions struct {
	Options
	API      WidgetAPI
	Identity security.IdentityProvider
	Sessions SessionStore
	App      *AppState
	RoomID   string
	PageSize int
}

// Widget 访客聊天挂件：有登录身份时直接初始化会话，否则先收集访客称呼
type Widget struct {
	*surface
	api      WidgetAPI
	identity security.IdentityProvider
	sessions SessionStore
	app      *AppState
	pageSize int

	mu     sync.Mutex
	roomID string
	guest  *GuestForm
	key    string
}

// NewWidget 构造挂件
func NewWidget(opts WidgetOptions) *Widget {
	if opts.Sessions == nil {
		opts.Sessions = NewMemoryStore()
	}
	if opts.App == nil {
		opts.App = NewAppState()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	w := &Widget{
		surface:  newSurface(model.RoleUser, opts.Options),
		api:      opts.API,
		identity: opts.Identity,
		sessions: opts.Sessions,
		app:      opts.App,
		pageSize: opts.PageSize,
		roomID:   opts.RoomID,
	}
	w.surface.onMessage = w.onLiveMessage
	return w
}

// App 挂件所属的应用级状态
func (w *Widget) App() *AppState {
	return w.app
}

// SetRoom 设置打开挂件时所在的房间上下文
func (w *Widget) SetRoom(roomID string) {
	w.mu.Lock()
	w.roomID = roomID
	w.mu.Unlock()
}

// Open 展开挂件。会话已存在时只补发已读；匿名且未填写表单时返回 ErrGuestFormRequired。
func (w *Widget) Open(ctx context.Context) error {
	w.app.SetOpen(true)
	if sid := w.SessionID(); sid != "" {
		w.markRead(ctx, sid)
		return nil
	}

	if id, ok := w.currentIdentity(); ok {
		w.setName(id.Name)
		return w.start(ctx, model.InitRequest{}, identityKey(id.UserID, id.Name, id.Email))
	}

	w.mu.Lock()
	guest := w.guest
	w.mu.Unlock()
	if guest == nil {
		return ErrGuestFormRequired
	}
	return w.startGuest(ctx, *guest)
}

// SubmitGuest 提交访客表单并初始化会话
func (w *Widget) SubmitGuest(ctx context.Context, form GuestForm) error {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	if err := util.ValidateDTO(&form); err != nil {
		w.opts.Notifier.Notify(notify.Error(notify.KindValidation, "请填写称呼与有效邮箱", err))
		return err
	}

	w.mu.Lock()
	w.guest = &form
	w.mu.Unlock()
	return w.startGuest(ctx, form)
}

// Hide 收起挂件，会话与订阅保持
func (w *Widget) Hide() {
	w.app.SetOpen(false)
}

// Forget 结束当前会话并忘记续接记录，下次打开时新建会话并重新填写访客表单
func (w *Widget) Forget(ctx context.Context) error {
	w.mu.Lock()
	key := w.key
	w.key, w.guest = "", nil
	w.mu.Unlock()

	w.unbind()
	w.opts.Store.Reset("")
	w.app.Reset()
	w.changed()
	if key == "" {
		return nil
	}
	return w.sessions.Forget(ctx, key)
}

func (w *Widget) startGuest(ctx context.Context, form GuestForm) error {
	w.setName(form.Name)
	req := model.InitRequest{GuestName: form.Name, GuestEmail: form.Email}
	return w.start(ctx, req, identityKey("", form.Name, form.Email))
}

func (w *Widget) start(ctx context.Context, req model.InitRequest, key string) error {
	w.mu.Lock()
	req.RoomID = w.roomID
	w.mu.Unlock()

	if remembered, err := w.sessions.Recall(ctx, key); err != nil {
		log.WarnContext(ctx, "recall guest session failed", "err", err)
	} else {
		req.SessionID = remembered
	}

	res, err := w.api.InitChat(ctx, req)
	if err != nil {
		w.opts.Notifier.Notify(notify.Error(notify.KindRequest, "会话初始化失败", err))
		return err
	}
	if err = w.sessions.Remember(ctx, key, res.SessionID); err != nil {
		log.WarnContext(ctx, "remember guest session failed", "err", err)
	}
	w.mu.Lock()
	w.key = key
	w.mu.Unlock()

	w.app.Reset()
	w.opts.Store.Seed(res.SessionID, res.Messages, len(res.Messages) >= w.pageSize)
	w.bind(res.SessionID)
	w.markRead(ctx, res.SessionID)
	w.changed()
	return nil
}

func (w *Widget) currentIdentity() (security.Identity, bool) {
	if w.identity == nil {
		return security.Identity{}, false
	}
	return w.identity.Current()
}

func (w *Widget) markRead(ctx context.Context, sessionID string) {
	if err := w.api.MarkChatRead(ctx, sessionID); err != nil {
		log.WarnContext(ctx, "mark chat read failed", "session", sessionID, "err", err)
	}
}

// onLiveMessage 客服消息：展开时回执已读，收起时累加未读
func (w *Widget) onLiveMessage(msg model.Message) {
	if msg.SenderType != model.RoleAdmin {
		return
	}
	if w.app.IsOpen() {
		go w.markRead(context.Background(), msg.SessionID)
		return
	}
	w.app.IncUnread()
}
