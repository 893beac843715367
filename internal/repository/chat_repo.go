package repository

import (
	"Concierge/internal/model"
	"Concierge/internal/pkg/util"
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
)

var ErrRecordNotFound = errors.New("record not found")

type ChatRepo interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, sessionID string) (*model.Conversation, error)
	GetConversationByUser(ctx context.Context, userID string) (*model.Conversation, error)
	UpdateConversation(ctx context.Context, sessionID string, fn func(conv *model.Conversation)) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, sessionID string) error
	ListConversations(ctx context.Context, q model.ConversationQuery) ([]model.Conversation, bool, error)

	AppendMessage(ctx context.Context, msg *model.Message) error
	GetMessages(ctx context.Context, sessionID string, pageNo, pageSize int) ([]model.Message, bool, error)
}

// chatRepoImpl 进程内存储，开发桩与测试使用
type chatRepoImpl struct {
	mu       sync.RWMutex
	convs    map[string]*model.Conversation
	messages map[string][]model.Message
}

func NewChatRepo() ChatRepo {
	return &chatRepoImpl{
		convs:    make(map[string]*model.Conversation),
		messages: make(map[string][]model.Message),
	}
}

// CreateConversation 创建会话
func (s *chatRepoImpl) CreateConversation(_ context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *conv
	s.convs[conv.SessionID] = &c
	return nil
}

// GetConversation 根据会话 ID 获取会话
func (s *chatRepoImpl) GetConversation(_ context.Context, sessionID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[sessionID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	out := *c
	return &out, nil
}

// GetConversationByUser 登录用户最近的会话
func (s *chatRepoImpl) GetConversationByUser(_ context.Context, userID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *model.Conversation
	for _, c := range s.convs {
		if c.UserID != userID {
			continue
		}
		if found == nil || c.CreatedAt.After(found.CreatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, ErrRecordNotFound
	}
	out := *found
	return &out, nil
}

// UpdateConversation 在锁内修改会话
func (s *chatRepoImpl) UpdateConversation(_ context.Context, sessionID string, fn func(conv *model.Conversation)) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[sessionID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	fn(c)
	out := *c
	return &out, nil
}

// DeleteConversation 删除会话及其消息
func (s *chatRepoImpl) DeleteConversation(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[sessionID]; !ok {
		return ErrRecordNotFound
	}
	delete(s.convs, sessionID)
	delete(s.messages, sessionID)
	return nil
}

// ListConversations 按筛选条件分页，默认按最后活跃时间倒序
func (s *chatRepoImpl) ListConversations(_ context.Context, q model.ConversationQuery) ([]model.Conversation, bool, error) {
	s.mu.RLock()
	matched := make([]model.Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		if q.Status != "" && q.Status != model.FilterAll && string(c.Status) != string(q.Status) {
			continue
		}
		if q.Search != "" &&
			!util.ContainsFold(c.GuestName, q.Search) &&
			!util.ContainsFold(c.GuestEmail, q.Search) &&
			!util.ContainsFold(c.LastMessage, q.Search) &&
			!util.ContainsFold(c.SessionID, q.Search) {
			continue
		}
		matched = append(matched, *c)
	}
	s.mu.RUnlock()

	key := func(c model.Conversation) int64 {
		if q.SortBy == "createdAt" {
			return c.CreatedAt.UnixNano()
		}
		if c.LastMessageAt.IsZero() {
			return c.CreatedAt.UnixNano()
		}
		return c.LastMessageAt.UnixNano()
	}
	sort.SliceStable(matched, func(i, j int) bool {
		ki, kj := key(matched[i]), key(matched[j])
		if ki != kj {
			return ki > kj
		}
		return matched[i].SessionID < matched[j].SessionID
	})

	start := min(q.PageNo*q.PageSize, len(matched))
	end := min(start+q.PageSize, len(matched))
	return matched[start:end], end < len(matched), nil
}

// AppendMessage 追加消息，创建时间单调
func (s *chatRepoImpl) AppendMessage(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[msg.SessionID]; !ok {
		return ErrRecordNotFound
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], *msg)
	return nil
}

// GetMessages 分页读取，第 0 页为最新，页内按时间倒序
func (s *chatRepoImpl) GetMessages(_ context.Context, sessionID string, pageNo, pageSize int) ([]model.Message, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.convs[sessionID]; !ok {
		return nil, false, ErrRecordNotFound
	}
	all := s.messages[sessionID]
	total := len(all)
	hi := total - pageNo*pageSize
	if hi <= 0 {
		return []model.Message{}, false, nil
	}
	lo := max(hi-pageSize, 0)
	page := slices.Clone(all[lo:hi])
	slices.Reverse(page)
	return page, lo > 0, nil
}
