package session

import (
	"Concierge/internal/api/dto"
	"Concierge/internal/chat/store"
	"Concierge/internal/chat/transport"
	"Concierge/internal/chat/typing"
	"Concierge/internal/model"
	"Concierge/internal/pkg/attachment"
	"Concierge/internal/pkg/consts"
	"Concierge/internal/pkg/notify"
	"Concierge/internal/pkg/util"
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/raulk/clock"
)

var (
	// ErrSending 上一次发送（含附件上传）尚未结束
	ErrSending = errors.New("send already in progress")
	// ErrNoSession 尚未建立会话
	ErrNoSession = errors.New("no active session")
)

// Channel 实时通道
type Channel interface {
	Subscribe(topic string, h transport.Handler)
	Unsubscribe(topic string)
	Publish(destination string, payload any) error
	State() transport.State
	OnStateChange(fn func(transport.State))
	OnError(fn func(error))
	Disconnect() error
}

// Uploader 对象存储：给定文件返回可公开访问的 URL
type Uploader interface {
	Upload(ctx context.Context, sessionID string, f attachment.File) (string, error)
}

// Options 两种界面共用的依赖
type Options struct {
	Channel  Channel
	Store    *store.Store
	Uploader Uploader
	Preparer *attachment.Preparer
	Notifier notify.Notifier
	Clock    clock.Clock
	Typing   typing.Timing
}

// View 渲染用只读视图
type View struct {
	SessionID  string
	State      transport.State
	Messages   []model.Message
	Typing     typing.Indicator
	Draft      string
	Attachment string
	Sending    bool
	HasMore    bool
	AutoScroll bool
}

// Empty 会话已建立但没有任何消息
func (v View) Empty() bool {
	return v.SessionID != "" && len(v.Messages) == 0
}

// surface 访客挂件与管理面板共用的会话编排：订阅、发送、输入状态与滚动
type surface struct {
	opts Options
	role model.SenderRole

	mu        sync.Mutex
	sessionID string
	name      string
	tracker   *typing.Tracker
	draft     string
	file      *attachment.File
	sending   bool
	closers   []func() error

	onMessage func(model.Message)
	onChange  func()
}

func newSurface(role model.SenderRole, opts Options) *surface {
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	s := &surface{opts: opts, role: role}
	opts.Channel.OnError(func(err error) {
		s.opts.Notifier.Notify(notify.Error(notify.KindTransport, "实时连接异常，正在重连", err))
	})
	opts.Channel.OnStateChange(func(transport.State) { s.changed() })
	return s
}

// OnChange 注册视图变化回调
func (s *surface) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// OnClose 注册卸载时需要释放的资源
func (s *surface) OnClose(fn func() error) {
	s.mu.Lock()
	s.closers = append(s.closers, fn)
	s.mu.Unlock()
}

func (s *surface) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SessionID 当前会话
func (s *surface) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *surface) setName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// bind 切换到新会话：先拆除旧订阅与输入计时器，再订阅新会话的两个主题
func (s *surface) bind(sessionID string) {
	s.unbind()

	s.mu.Lock()
	name := s.name
	s.sessionID = sessionID
	s.draft, s.file = "", nil
	s.tracker = typing.NewTracker(s.opts.Clock, s.opts.Typing, typing.Self{Role: s.role, Name: name}, func(on bool) {
		s.publishTyping(sessionID, name, on)
	})
	tracker := s.tracker
	s.mu.Unlock()

	tracker.In.OnChange(func(typing.Indicator) { s.changed() })
	s.opts.Channel.Subscribe(util.ChatTopic(sessionID), func(body []byte) { s.handleMessage(sessionID, body) })
	s.opts.Channel.Subscribe(util.TypingTopic(sessionID), func(body []byte) { s.handleTyping(sessionID, tracker, body) })
	log.Debug("chat session bound", "session", sessionID, "role", s.role)
}

func (s *surface) unbind() {
	s.mu.Lock()
	prev, tracker := s.sessionID, s.tracker
	s.sessionID, s.tracker = "", nil
	s.mu.Unlock()

	if prev == "" {
		return
	}
	s.opts.Channel.Unsubscribe(util.ChatTopic(prev))
	s.opts.Channel.Unsubscribe(util.TypingTopic(prev))
	if tracker != nil {
		tracker.Close()
	}
}

func (s *surface) handleMessage(sessionID string, body []byte) {
	if s.SessionID() != sessionID {
		return
	}
	var msg model.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Warn("malformed chat message", "session", sessionID, "err", err)
		return
	}
	if msg.SessionID == "" {
		msg.SessionID = sessionID
	}
	if msg.MessageType == "" {
		msg.MessageType = model.KindText
	}
	if appended, _ := s.opts.Store.AppendLive(msg); !appended {
		return
	}

	s.mu.Lock()
	fn := s.onMessage
	s.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
	s.changed()
}

func (s *surface) handleTyping(sessionID string, tracker *typing.Tracker, body []byte) {
	if s.SessionID() != sessionID {
		return
	}
	var sig model.TypingSignal
	if err := json.Unmarshal(body, &sig); err != nil {
		log.Warn("malformed typing signal", "session", sessionID, "err", err)
		return
	}
	tracker.In.Receive(sig)
}

func (s *surface) publishTyping(sessionID, name string, on bool) {
	payload := dto.TypingPayload{Typing: on, SenderName: name, SenderType: string(s.role)}
	if err := s.opts.Channel.Publish(util.TypingDestination(sessionID), payload); err != nil {
		log.Debug("typing signal not delivered", "session", sessionID, "typing", on, "err", err)
	}
}

// Input 输入框内容变化
func (s *surface) Input(text string) {
	s.mu.Lock()
	s.draft = text
	tracker := s.tracker
	s.mu.Unlock()

	if tracker != nil && text != "" {
		tracker.Out.InputChanged()
	}
}

// Attach 选择附件，本地校验失败时不进入待发送状态
func (s *surface) Attach(f attachment.File) error {
	if err := s.opts.Preparer.Validate(f); err != nil {
		s.opts.Notifier.Notify(notify.Error(notify.KindValidation, "附件无法发送", err))
		return err
	}
	s.mu.Lock()
	s.file = &f
	s.mu.Unlock()
	s.changed()
	return nil
}

// ClearAttachment 取消已选附件
func (s *surface) ClearAttachment() {
	s.mu.Lock()
	s.file = nil
	s.mu.Unlock()
	s.changed()
}

// Send 发送当前输入与附件。内容与附件皆空或无会话时静默忽略；
// 附件先上传再发布；上传或发布失败时保留输入以便重试。
func (s *surface) Send(ctx context.Context) error {
	s.mu.Lock()
	sessionID, name, tracker := s.sessionID, s.name, s.tracker
	content, file := strings.TrimSpace(s.draft), s.file
	if sessionID == "" || (content == "" && file == nil) {
		s.mu.Unlock()
		return nil
	}
	if s.sending {
		s.mu.Unlock()
		return ErrSending
	}
	s.sending = true
	s.mu.Unlock()
	s.changed()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
		s.changed()
	}()

	if s.opts.Channel.State() != transport.Connected {
		s.opts.Notifier.Notify(notify.Error(notify.KindTransport, "连接中，消息暂未发送", transport.ErrNotConnected))
		return transport.ErrNotConnected
	}

	kind, fileURL := model.KindText, ""
	if file != nil {
		prepared, err := s.opts.Preparer.Prepare(*file)
		if err != nil {
			s.opts.Notifier.Notify(notify.Error(notify.KindValidation, "附件无法发送", err))
			return err
		}
		fileURL, err = s.opts.Uploader.Upload(ctx, sessionID, prepared)
		if err != nil {
			s.opts.Notifier.Notify(notify.Error(notify.KindUpload, "附件上传失败", err))
			return err
		}
		kind = prepared.Kind()
	}

	clientID := uuid.NewString()
	payload := dto.SendMessagePayload{
		SessionID:   sessionID,
		ClientID:    clientID,
		Content:     content,
		MessageType: string(kind),
		FileURL:     fileURL,
		SenderName:  name,
	}
	// 回显可能在 Publish 返回前到达，乐观消息须先入列
	s.opts.Store.AddOptimistic(model.Message{
		SessionID:   sessionID,
		ClientID:    clientID,
		SenderType:  s.role,
		SenderName:  name,
		Content:     content,
		MessageType: kind,
		FileURL:     fileURL,
		CreatedAt:   s.opts.Clock.Now(),
	})
	if err := s.opts.Channel.Publish(consts.DestSendMessage, payload); err != nil {
		s.opts.Store.DropPending(clientID)
		s.opts.Notifier.Notify(notify.Error(notify.KindTransport, "消息发送失败", err))
		return err
	}

	s.mu.Lock()
	if s.sessionID == sessionID {
		s.draft, s.file = "", nil
	}
	s.mu.Unlock()
	if tracker != nil {
		tracker.Out.Sent()
	}
	return nil
}

// Scroll 记录滚动位置，接近顶部时加载更早的消息
func (s *surface) Scroll(ctx context.Context, scrollTop float64) error {
	if !s.opts.Store.Scroll(scrollTop) {
		return nil
	}
	err := s.opts.Store.LoadMore(ctx)
	switch {
	case err == nil:
		s.changed()
		return nil
	case errors.Is(err, store.ErrStale), errors.Is(err, store.ErrBusy):
		return nil
	default:
		s.opts.Notifier.Notify(notify.Error(notify.KindRequest, "加载历史消息失败", err))
		return err
	}
}

// View 当前视图，消息内容在此处去除标记
func (s *surface) View() View {
	snap := s.opts.Store.Snapshot()

	s.mu.Lock()
	v := View{
		SessionID: s.sessionID,
		Draft:     s.draft,
		Sending:   s.sending,
	}
	if s.file != nil {
		v.Attachment = s.file.Name
	}
	if s.tracker != nil {
		v.Typing = s.tracker.In.Current()
	}
	s.mu.Unlock()

	v.State = s.opts.Channel.State()
	v.HasMore = snap.HasNextPage
	v.AutoScroll = snap.AutoScroll
	v.Messages = make([]model.Message, len(snap.Messages))
	for i, m := range snap.Messages {
		m.Content = util.SanitizeText(m.Content)
		m.SenderName = util.SanitizeText(m.SenderName)
		v.Messages[i] = m
	}
	return v
}

// Close 卸载：取消订阅、清理输入计时器、断开实时连接并释放注册的资源
func (s *surface) Close() error {
	s.unbind()

	var result *multierror.Error
	if err := s.opts.Channel.Disconnect(); err != nil {
		result = multierror.Append(result, err)
	}

	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()
	for _, fn := range closers {
		if err := fn(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
