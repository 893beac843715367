package conversation

import (
	"Concierge/internal/model"
	"Concierge/internal/pkg/consts"
	"Concierge/internal/pkg/notify"
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"github.com/raulk/clock"
)

var (
	ErrBusy     = errors.New("conversation page fetch already in flight")
	ErrStale    = errors.New("conversation page result superseded")
	ErrNotFound = errors.New("conversation not in list")
	ErrNoMore   = errors.New("no further conversation pages")
)

// API 管理端会话接口
type API interface {
	ListConversations(ctx context.Context, q model.ConversationQuery) (*model.Page[model.Conversation], error)
	MarkConversationRead(ctx context.Context, sessionID string) error
	UpdateConversationStatus(ctx context.Context, sessionID string, status model.ConversationStatus) error
	DeleteConversation(ctx context.Context, sessionID string) error
}

// Options 控制器参数
type Options struct {
	PageSize int
	Debounce time.Duration
	SortBy   string
	Clock    clock.Clock
	Notifier notify.Notifier
}

// Filters 列表筛选条件
type Filters struct {
	Search string
	Status model.StatusFilter
}

// Snapshot 列表只读视图
type Snapshot struct {
	Items    []model.Conversation
	PageNo   int
	HasNext  bool
	Loading  bool
	Selected string
	Filters  Filters
}

// Controller 管理端会话列表：分页、筛选、已读与状态维护
type Controller struct {
	api  API
	opts Options

	mu       sync.Mutex
	filters  Filters
	gen      uint64
	items    []model.Conversation
	pageNo   int
	hasNext  bool
	loading  bool
	selected string

	debounce    *clock.Timer
	debounceSeq uint64
	onChange    func(Snapshot)
}

// New 构造控制器
func New(api API, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = consts.DefaultConversationSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	return &Controller{
		api:     api,
		opts:    opts,
		filters: Filters{Status: model.FilterAll},
	}
}

// OnChange 注册列表变化回调
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// SetSearch 更新搜索词，防抖后从第 0 页重新拉取
func (c *Controller) SetSearch(ctx context.Context, search string) {
	c.mu.Lock()
	c.filters.Search = search
	c.scheduleLocked(ctx)
	c.mu.Unlock()
}

// SetStatus 更新状态筛选，防抖后从第 0 页重新拉取
func (c *Controller) SetStatus(ctx context.Context, status model.StatusFilter) {
	if status == "" {
		status = model.FilterAll
	}
	c.mu.Lock()
	c.filters.Status = status
	c.scheduleLocked(ctx)
	c.mu.Unlock()
}

func (c *Controller) scheduleLocked(ctx context.Context) {
	c.debounceSeq++
	if c.debounce != nil {
		c.debounce.Stop()
	}
	seq := c.debounceSeq
	c.debounce = c.opts.Clock.AfterFunc(c.opts.Debounce, func() {
		c.mu.Lock()
		if seq != c.debounceSeq {
			c.mu.Unlock()
			return
		}
		c.debounce = nil
		c.mu.Unlock()

		if _, err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrStale) {
			log.WarnContext(ctx, "conversation list refresh after filter change failed", "err", err)
		}
	})
}

// LoadPage 拉取指定页；第 0 页替换列表，后续页追加
func (c *Controller) LoadPage(ctx context.Context, pageNo int) (*model.Page[model.Conversation], error) {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.mu.Unlock()
	return c.fetch(ctx, pageNo)
}

// Refresh 以当前筛选条件从第 0 页重新拉取，作废任何在途请求
func (c *Controller) Refresh(ctx context.Context) (*model.Page[model.Conversation], error) {
	return c.fetch(ctx, 0)
}

// LastRowVisible 最后一行进入视口：存在下一页且无在途请求时追加下一页
func (c *Controller) LastRowVisible(ctx context.Context) (*model.Page[model.Conversation], error) {
	c.mu.Lock()
	if !c.hasNext {
		c.mu.Unlock()
		return nil, ErrNoMore
	}
	if c.loading {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	next := c.pageNo + 1
	c.mu.Unlock()
	return c.fetch(ctx, next)
}

func (c *Controller) fetch(ctx context.Context, pageNo int) (*model.Page[model.Conversation], error) {
	c.mu.Lock()
	if pageNo == 0 {
		c.gen++
	}
	gen := c.gen
	c.loading = true
	q := model.ConversationQuery{
		PageNo:   pageNo,
		PageSize: c.opts.PageSize,
		Search:   c.filters.Search,
		SortBy:   c.opts.SortBy,
		Status:   c.filters.Status,
	}
	c.mu.Unlock()

	page, err := c.api.ListConversations(ctx, q)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil, ErrStale
	}
	c.loading = false
	if err != nil {
		c.mu.Unlock()
		c.opts.Notifier.Notify(notify.Error(notify.KindRequest, "加载会话列表失败", err))
		return nil, err
	}

	if pageNo == 0 {
		c.items = dedupe(nil, page.Items)
	} else {
		c.items = dedupe(c.items, page.Items)
	}
	c.pageNo = pageNo
	c.hasNext = page.HasNextPage
	snap, fn := c.snapshotLocked(), c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	return page, nil
}

// dedupe 追加新页并按 SessionID 去重；会话页按时间倒序，后续页只会更旧
func dedupe(items, page []model.Conversation) []model.Conversation {
	seen := make(map[string]struct{}, len(items)+len(page))
	out := make([]model.Conversation, 0, len(items)+len(page))
	for _, group := range [][]model.Conversation{items, page} {
		for _, it := range group {
			if _, ok := seen[it.SessionID]; ok {
				continue
			}
			seen[it.SessionID] = struct{}{}
			out = append(out, it)
		}
	}
	return out
}

// Select 选中会话；存在未读时标记已读并刷新列表。
// 标记失败只放弃已读，选中保持生效
func (c *Controller) Select(ctx context.Context, sessionID string) (model.Conversation, error) {
	conv, ok := c.Choose(sessionID)
	if !ok || !conv.HasUnread() {
		return conv, nil
	}
	if err := c.MarkRead(ctx, sessionID); err != nil {
		return conv, err
	}
	conv.ReadByAdmin = true
	conv.UnreadCount = 0
	return conv, nil
}

// Choose 只切换选中，不发起请求；列表中没有该会话时 ok 为 false
func (c *Controller) Choose(sessionID string) (conv model.Conversation, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = sessionID
	if conv, ok = c.findLocked(sessionID); !ok {
		conv = model.Conversation{SessionID: sessionID}
	}
	return conv, ok
}

// MarkRead 标记已读并刷新
func (c *Controller) MarkRead(ctx context.Context, sessionID string) error {
	if err := c.api.MarkConversationRead(ctx, sessionID); err != nil {
		c.opts.Notifier.Notify(notify.Error(notify.KindRequest, "标记已读失败", err))
		return err
	}
	return c.refreshAfterMutation(ctx)
}

// ToggleStatus 在 ACTIVE 与 RESOLVED 之间切换，服务端确认后刷新
func (c *Controller) ToggleStatus(ctx context.Context, sessionID string) (model.ConversationStatus, error) {
	c.mu.Lock()
	conv, ok := c.findLocked(sessionID)
	c.mu.Unlock()
	if !ok {
		return "", ErrNotFound
	}

	next := conv.Status.Toggled()
	if err := c.api.UpdateConversationStatus(ctx, sessionID, next); err != nil {
		c.opts.Notifier.Notify(notify.Error(notify.KindRequest, "更新会话状态失败", err))
		return conv.Status, err
	}
	return next, c.refreshAfterMutation(ctx)
}

// Delete 删除会话；若为当前选中则清空选中
func (c *Controller) Delete(ctx context.Context, sessionID string) error {
	if err := c.api.DeleteConversation(ctx, sessionID); err != nil {
		c.opts.Notifier.Notify(notify.Error(notify.KindRequest, "删除会话失败", err))
		return err
	}

	c.mu.Lock()
	if c.selected == sessionID {
		c.selected = ""
	}
	c.mu.Unlock()
	return c.refreshAfterMutation(ctx)
}

func (c *Controller) refreshAfterMutation(ctx context.Context) error {
	if _, err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrStale) {
		return err
	}
	return nil
}

// ApplyLiveMessage 用实时消息更新列表中对应会话的摘要；未读数与排序以下次刷新为准
func (c *Controller) ApplyLiveMessage(msg model.Message) bool {
	c.mu.Lock()
	idx := c.indexLocked(msg.SessionID)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	it := &c.items[idx]
	it.LastMessage = msg.Content
	if msg.Content == "" && msg.FileURL != "" {
		it.LastMessage = string(msg.MessageType)
	}
	it.LastMessageAt = msg.CreatedAt
	snap, fn := c.snapshotLocked(), c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	return true
}

// Deselect 清空选中
func (c *Controller) Deselect() {
	c.mu.Lock()
	c.selected = ""
	c.mu.Unlock()
}

// Selected 当前选中会话
func (c *Controller) Selected() (model.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == "" {
		return model.Conversation{}, false
	}
	return c.findLocked(c.selected)
}

// Snapshot 当前列表视图
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close 停止防抖计时器
func (c *Controller) Close() {
	c.mu.Lock()
	c.debounceSeq++
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.mu.Unlock()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Items:    append([]model.Conversation(nil), c.items...),
		PageNo:   c.pageNo,
		HasNext:  c.hasNext,
		Loading:  c.loading,
		Selected: c.selected,
		Filters:  c.filters,
	}
}

func (c *Controller) indexLocked(sessionID string) int {
	for i := range c.items {
		if c.items[i].SessionID == sessionID {
			return i
		}
	}
	return -1
}

func (c *Controller) findLocked(sessionID string) (model.Conversation, bool) {
	if i := c.indexLocked(sessionID); i >= 0 {
		return c.items[i], true
	}
	return model.Conversation{}, false
}
