package store

import (
	"Concierge/internal/model"
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
)

var (
	// ErrBusy 已有分页请求在途
	ErrBusy = errors.New("page fetch already in flight")
	// ErrStale 请求返回时会话已切换，结果被丢弃
	ErrStale = errors.New("stale page discarded")
	// ErrNoConversation 未打开会话
	ErrNoConversation = errors.New("no active conversation")
)

// PageFetcher 历史消息分页来源；第 0 页为最新消息，页内按时间倒序
type PageFetcher interface {
	FetchMessages(ctx context.Context, sessionID string, pageNo, pageSize int) (*model.Page[model.Message], error)
}

// Options 分页与窗格参数
type Options struct {
	PageSize     int
	ClientHeight float64
	NearBottom   float64
	NearTop      float64
	Height       HeightFunc
}

// Snapshot 只读视图
type Snapshot struct {
	SessionID    string
	Messages     []model.Message
	Page         int
	HasNextPage  bool
	Loading      bool
	ScrollTop    float64
	ScrollHeight float64
	ClientHeight float64
	AutoScroll   bool
}

// Store 当前会话的有序消息日志。
// 历史页反转后前插并保持阅读位置，实时消息追加到末尾，乐观消息在权威副本到达时被替换。
type Store struct {
	fetcher PageFetcher
	opts    Options

	mu        sync.Mutex
	sessionID string
	items     []model.Message
	page      int
	hasNext   bool
	loading   bool
	gen       uint64
	vp        viewport
}

// New 构造消息存储
func New(fetcher PageFetcher, opts Options) *Store {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.Height == nil {
		opts.Height = EstimateHeight
	}
	s := &Store{fetcher: fetcher, opts: opts, page: -1}
	s.vp = viewport{
		clientHeight: opts.ClientHeight,
		nearBottom:   opts.NearBottom,
		nearTop:      opts.NearTop,
		autoScroll:   true,
	}
	return s
}

// Reset 切换会话：清空消息与滚动状态，作废在途请求
func (s *Store) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(sessionID)
}

func (s *Store) resetLocked(sessionID string) {
	s.gen++
	s.sessionID = sessionID
	s.items = nil
	s.page = -1
	s.hasNext = false
	s.loading = false
	s.vp.scrollTop = 0
	s.vp.autoScroll = true
}

// Seed 以初始化接口返回的批次作为首屏，不再单独拉取第 0 页
func (s *Store) Seed(sessionID string, msgs []model.Message, hasNext bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(sessionID)
	batch := slices.Clone(msgs)
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].CreatedAt.Before(batch[j].CreatedAt) })
	s.items = dedupe(batch)
	s.page = 0
	s.hasNext = hasNext
	s.vp.toBottom(s.scrollHeight())
}

// LoadPage 拉取指定页并合并。第 0 页替换当前列表，其余页前插并补偿滚动位置。
func (s *Store) LoadPage(ctx context.Context, pageNo int) error {
	s.mu.Lock()
	if s.sessionID == "" {
		s.mu.Unlock()
		return ErrNoConversation
	}
	if s.loading {
		s.mu.Unlock()
		return ErrBusy
	}
	s.loading = true
	sessionID, gen, size := s.sessionID, s.gen, s.opts.PageSize
	s.mu.Unlock()

	page, err := s.fetcher.FetchMessages(ctx, sessionID, pageNo, size)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return ErrStale
	}
	s.loading = false
	if err != nil {
		return err
	}

	older := reversed(page.Items)
	if pageNo == 0 {
		s.replace(older)
	} else {
		s.prepend(older)
	}
	s.page = pageNo
	s.hasNext = page.HasNextPage
	return nil
}

// LoadMore 存在下一页且无在途请求时拉取下一页
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	next, ok := s.page+1, s.hasNext && !s.loading
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.LoadPage(ctx, next)
}

// AppendLive 追加一条推送消息。阅读者此前位于底部附近时自动滚到底部。
// 返回是否写入以及是否触发了滚动。
func (s *Store) AppendLive(msg model.Message) (appended bool, scrolled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == "" || (msg.SessionID != "" && msg.SessionID != s.sessionID) {
		return false, false
	}

	follow := s.vp.autoScroll
	msg.Pending = false
	if idx := s.pendingMatch(msg); idx >= 0 {
		s.items = slices.Delete(s.items, idx, idx+1)
	} else if msg.ID != "" && s.indexByID(msg.ID) >= 0 {
		return false, false
	}
	s.insertSorted(msg)

	if follow {
		s.vp.toBottom(s.scrollHeight())
		return true, true
	}
	return true, false
}

// AddOptimistic 本地发送的消息立即展示，等待权威副本对账
func (s *Store) AddOptimistic(msg model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == "" || msg.SessionID != s.sessionID {
		return false
	}
	if msg.ClientID != "" && slices.ContainsFunc(s.items, func(m model.Message) bool {
		return !m.Pending && m.ClientID == msg.ClientID
	}) {
		return false
	}
	msg.Pending = true
	s.insertSorted(msg)
	s.vp.toBottom(s.scrollHeight())
	return true
}

// DropPending 移除未确认的乐观消息
func (s *Store) DropPending(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.items {
		if m.Pending && m.ClientID == clientID {
			s.items = slices.Delete(s.items, i, i+1)
			s.vp.clamp(s.scrollHeight())
			return
		}
	}
}

// Scroll 记录滚动位置并更新自动滚动标记；返回是否应加载更早的消息
func (s *Store) Scroll(scrollTop float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.scrollHeight()
	s.vp.scrollTop = scrollTop
	s.vp.clamp(h)
	s.vp.autoScroll = s.vp.distanceFromBottom(h) <= s.vp.nearBottom
	return s.vp.scrollTop <= s.vp.nearTop && s.hasNext && !s.loading
}

// Resize 窗格高度变化
func (s *Store) Resize(clientHeight float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vp.clientHeight = clientHeight
	h := s.scrollHeight()
	if s.vp.autoScroll {
		s.vp.toBottom(h)
		return
	}
	s.vp.clamp(h)
}

// TopVisible 窗格顶部可见消息的下标及其被遮挡的像素
func (s *Store) TopVisible() (int, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var top float64
	for i, m := range s.items {
		h := s.opts.Height(m)
		if top+h > s.vp.scrollTop {
			return i, s.vp.scrollTop - top
		}
		top += h
	}
	return -1, 0
}

// Messages 当前有序消息副本
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// SessionID 当前会话
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Snapshot 当前状态
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID:    s.sessionID,
		Messages:     slices.Clone(s.items),
		Page:         s.page,
		HasNextPage:  s.hasNext,
		Loading:      s.loading,
		ScrollTop:    s.vp.scrollTop,
		ScrollHeight: s.scrollHeight(),
		ClientHeight: s.vp.clientHeight,
		AutoScroll:   s.vp.autoScroll,
	}
}

func (s *Store) replace(batch []model.Message) {
	prev := s.items
	s.items = dedupe(batch)
	for _, m := range prev {
		if m.ID != "" && s.indexByID(m.ID) >= 0 {
			continue
		}
		if !m.Pending && m.ID == "" {
			continue
		}
		s.insertSorted(m)
	}
	s.vp.toBottom(s.scrollHeight())
}

func (s *Store) prepend(older []model.Message) {
	fresh := make([]model.Message, 0, len(older))
	for _, m := range older {
		if m.ID != "" && s.indexByID(m.ID) >= 0 {
			continue
		}
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return
	}

	prevHeight := s.scrollHeight()
	s.items = append(fresh, s.items...)
	if !sort.SliceIsSorted(s.items, func(i, j int) bool { return s.items[i].CreatedAt.Before(s.items[j].CreatedAt) }) {
		sort.SliceStable(s.items, func(i, j int) bool { return s.items[i].CreatedAt.Before(s.items[j].CreatedAt) })
	}
	s.vp.scrollTop += s.scrollHeight() - prevHeight
	s.vp.clamp(s.scrollHeight())
}

// insertSorted 从尾部寻找插入点，保持创建时间单调不减
func (s *Store) insertSorted(msg model.Message) {
	i := len(s.items)
	for i > 0 && s.items[i-1].CreatedAt.After(msg.CreatedAt) {
		i--
	}
	s.items = slices.Insert(s.items, i, msg)
}

// pendingMatch 先按关联 ID，后端未回传关联 ID 时再按内容匹配乐观消息
func (s *Store) pendingMatch(msg model.Message) int {
	if msg.ClientID != "" {
		for i, m := range s.items {
			if m.Pending && m.ClientID == msg.ClientID {
				return i
			}
		}
		return -1
	}
	for i, m := range s.items {
		if m.Pending && m.SameBody(msg) {
			return i
		}
	}
	return -1
}

func (s *Store) indexByID(id string) int {
	for i, m := range s.items {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) scrollHeight() float64 {
	var h float64
	for _, m := range s.items {
		h += s.opts.Height(m)
	}
	return h
}

func reversed(items []model.Message) []model.Message {
	out := make([]model.Message, len(items))
	for i, m := range items {
		out[len(items)-1-i] = m
	}
	return out
}

func dedupe(items []model.Message) []model.Message {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, m := range items {
		if m.ID != "" {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
		}
		out = append(out, m)
	}
	return out
}
