package service

import (
	"Concierge/internal/api/dto"
	"Concierge/internal/model"
	"Concierge/internal/pkg/consts"
	"Concierge/internal/pkg/util"
	"Concierge/internal/repository"
	"context"
	"errors"
	log "log/slog"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/raulk/clock"
)

const lastMessageLimit = 64

// Caller 请求方身份，匿名访客 UserID 为空
type Caller struct {
	UserID string
	Name   string
	Email  string
	Admin  bool
}

// Role 发言角色
func (c Caller) Role() model.SenderRole {
	if c.Admin {
		return model.RoleAdmin
	}
	return model.RoleUser
}

// ChatService 客服会话服务接口定义
type ChatService interface {
	InitChat(ctx context.Context, caller Caller, req *dto.InitChatReq) (*dto.InitChatResp, error)
	GetMessages(ctx context.Context, caller Caller, sessionID string, pageNo, pageSize int) (*dto.PageDTO[dto.MessageDTO], error)
	MarkChatRead(ctx context.Context, caller Caller, sessionID string) error
	SendMessage(ctx context.Context, caller Caller, req *dto.SendMessagePayload) (*dto.MessageDTO, error)
	Typing(ctx context.Context, caller Caller, sessionID string, req *dto.TypingPayload) error
	CanAccess(ctx context.Context, caller Caller, sessionID string) error

	ListConversations(ctx context.Context, q model.ConversationQuery) (*dto.PageDTO[dto.ConversationDTO], error)
	MarkConversationRead(ctx context.Context, sessionID string) error
	UpdateStatus(ctx context.Context, sessionID string, status string) error
	DeleteConversation(ctx context.Context, sessionID string) error
}

type chatServiceImpl struct {
	repo  repository.ChatRepo
	bus   Bus
	clock clock.Clock
}

// NewChatService 构造函数
func NewChatService(repo repository.ChatRepo, bus Bus, clk clock.Clock) ChatService {
	if clk == nil {
		clk = clock.New()
	}
	return &chatServiceImpl{repo: repo, bus: bus, clock: clk}
}

// InitChat 初始化或续接会话：优先使用请求携带的会话 ID，其次是登录用户最近的会话
func (s *chatServiceImpl) InitChat(ctx context.Context, caller Caller, req *dto.InitChatReq) (*dto.InitChatResp, error) {
	if err := util.ValidateDTO(req); err != nil {
		return nil, ErrParamInvalid
	}

	if conv := s.resumable(ctx, caller, req.SessionID); conv != nil {
		msgs, _, err := s.repo.GetMessages(ctx, conv.SessionID, 0, consts.DefaultPageSize)
		if err != nil {
			return nil, s.mapErr(err)
		}
		slices.Reverse(msgs)
		log.InfoContext(ctx, "chat session resumed", "session", conv.SessionID, "messages", len(msgs))
		return &dto.InitChatResp{SessionID: conv.SessionID, Messages: toMessageDTOs(msgs)}, nil
	}

	name := strings.TrimSpace(req.GuestName)
	email := strings.TrimSpace(req.GuestEmail)
	if caller.UserID != "" {
		name, email = caller.Name, caller.Email
	}
	if name == "" && caller.UserID == "" {
		return nil, ErrGuestNameRequired
	}

	now := s.clock.Now()
	conv := &model.Conversation{
		SessionID:   uuid.NewString(),
		GuestName:   name,
		GuestEmail:  email,
		UserID:      caller.UserID,
		RoomID:      req.RoomID,
		Status:      model.StatusActive,
		ReadByAdmin: true,
		ReadByUser:  true,
		CreatedAt:   now,
	}
	if req.RoomID != "" {
		conv.RoomName = "Room " + req.RoomID
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "chat session created", "session", conv.SessionID, "user", caller.UserID, "room", req.RoomID)
	return &dto.InitChatResp{SessionID: conv.SessionID, Messages: []dto.MessageDTO{}}, nil
}

func (s *chatServiceImpl) resumable(ctx context.Context, caller Caller, sessionID string) *model.Conversation {
	if sessionID != "" {
		conv, err := s.repo.GetConversation(ctx, sessionID)
		if err == nil && s.owns(caller, conv) {
			return conv
		}
	}
	if caller.UserID != "" {
		if conv, err := s.repo.GetConversationByUser(ctx, caller.UserID); err == nil {
			return conv
		}
	}
	return nil
}

// owns 管理员可访问全部会话；访客会话凭会话 ID 访问；用户会话仅限本人
func (s *chatServiceImpl) owns(caller Caller, conv *model.Conversation) bool {
	if caller.Admin {
		return true
	}
	return conv.UserID == "" || conv.UserID == caller.UserID
}

// CanAccess 校验请求方是否可访问会话
func (s *chatServiceImpl) CanAccess(ctx context.Context, caller Caller, sessionID string) error {
	conv, err := s.repo.GetConversation(ctx, sessionID)
	if err != nil {
		return s.mapErr(err)
	}
	if !s.owns(caller, conv) {
		return UnauthorizedError
	}
	return nil
}

// GetMessages 历史消息分页，第 0 页为最新，页内按时间倒序
func (s *chatServiceImpl) GetMessages(ctx context.Context, caller Caller, sessionID string, pageNo, pageSize int) (*dto.PageDTO[dto.MessageDTO], error) {
	if err := s.CanAccess(ctx, caller, sessionID); err != nil {
		return nil, err
	}
	if pageNo < 0 {
		return nil, ErrParamInvalid
	}
	pageSize = util.ClampPageSize(pageSize, consts.DefaultPageSize)

	msgs, hasNext, err := s.repo.GetMessages(ctx, sessionID, pageNo, pageSize)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return &dto.PageDTO[dto.MessageDTO]{
		Items:       toMessageDTOs(msgs),
		PageNo:      pageNo,
		PageSize:    pageSize,
		HasNextPage: hasNext,
	}, nil
}

// MarkChatRead 访客端已读
func (s *chatServiceImpl) MarkChatRead(ctx context.Context, caller Caller, sessionID string) error {
	if err := s.CanAccess(ctx, caller, sessionID); err != nil {
		return err
	}
	_, err := s.repo.UpdateConversation(ctx, sessionID, func(c *model.Conversation) { c.ReadByUser = true })
	return s.mapErr(err)
}

// SendMessage 保存消息、更新会话摘要并推送到会话主题；回传 clientId 供发送方对账
func (s *chatServiceImpl) SendMessage(ctx context.Context, caller Caller, req *dto.SendMessagePayload) (*dto.MessageDTO, error) {
	if err := util.ValidateDTO(req); err != nil {
		return nil, ErrParamInvalid
	}
	content := strings.TrimSpace(req.Content)
	if content == "" && req.FileURL == "" {
		return nil, ErrMessageEmpty
	}

	conv, err := s.repo.GetConversation(ctx, req.SessionID)
	if err != nil {
		return nil, s.mapErr(err)
	}
	if !s.owns(caller, conv) {
		return nil, UnauthorizedError
	}

	name := req.SenderName
	if name == "" {
		name = caller.Name
	}
	if name == "" && !caller.Admin {
		name = conv.GuestName
	}

	msg := &model.Message{
		ID:          uuid.NewString(),
		SessionID:   req.SessionID,
		ClientID:    req.ClientID,
		SenderType:  caller.Role(),
		SenderName:  name,
		Content:     content,
		MessageType: model.MessageKind(req.MessageType),
		FileURL:     req.FileURL,
		CreatedAt:   s.clock.Now(),
	}
	if err = s.repo.AppendMessage(ctx, msg); err != nil {
		return nil, s.mapErr(err)
	}

	_, err = s.repo.UpdateConversation(ctx, req.SessionID, func(c *model.Conversation) {
		c.LastMessage = summary(msg)
		c.LastMessageAt = msg.CreatedAt
		if msg.SenderType == model.RoleUser {
			c.ReadByAdmin = false
			c.UnreadCount++
			c.Status = model.StatusActive
		} else {
			c.ReadByUser = false
		}
	})
	if err != nil {
		return nil, s.mapErr(err)
	}

	res := toMessageDTO(*msg)
	if err = s.publish(ctx, util.ChatTopic(req.SessionID), res); err != nil {
		log.ErrorContext(ctx, "publish chat message failed", "session", req.SessionID, "err", err)
	}
	return &res, nil
}

// Typing 转发输入状态，不持久化
func (s *chatServiceImpl) Typing(ctx context.Context, caller Caller, sessionID string, req *dto.TypingPayload) error {
	if err := s.CanAccess(ctx, caller, sessionID); err != nil {
		return err
	}
	name := req.SenderName
	if name == "" {
		name = caller.Name
	}
	sig := model.TypingSignal{
		SessionID:  sessionID,
		SenderName: name,
		SenderType: caller.Role(),
		Typing:     req.Typing,
	}
	return s.publish(ctx, util.TypingTopic(sessionID), sig)
}

// ListConversations 管理端会话列表
func (s *chatServiceImpl) ListConversations(ctx context.Context, q model.ConversationQuery) (*dto.PageDTO[dto.ConversationDTO], error) {
	if q.PageNo < 0 {
		return nil, ErrParamInvalid
	}
	q.PageSize = util.ClampPageSize(q.PageSize, consts.DefaultConversationSize)
	if q.Status == "" {
		q.Status = model.FilterAll
	}

	convs, hasNext, err := s.repo.ListConversations(ctx, q)
	if err != nil {
		return nil, err
	}
	items := make([]dto.ConversationDTO, 0, len(convs))
	for _, c := range convs {
		items = append(items, toConversationDTO(c))
	}
	return &dto.PageDTO[dto.ConversationDTO]{Items: items, PageNo: q.PageNo, PageSize: q.PageSize, HasNextPage: hasNext}, nil
}

// MarkConversationRead 管理端已读
func (s *chatServiceImpl) MarkConversationRead(ctx context.Context, sessionID string) error {
	_, err := s.repo.UpdateConversation(ctx, sessionID, func(c *model.Conversation) {
		c.ReadByAdmin = true
		c.UnreadCount = 0
	})
	return s.mapErr(err)
}

// UpdateStatus 变更会话状态
func (s *chatServiceImpl) UpdateStatus(ctx context.Context, sessionID string, status string) error {
	next := model.ConversationStatus(status)
	if next != model.StatusActive && next != model.StatusResolved {
		return ErrStatusInvalid
	}
	_, err := s.repo.UpdateConversation(ctx, sessionID, func(c *model.Conversation) { c.Status = next })
	return s.mapErr(err)
}

// DeleteConversation 删除会话
func (s *chatServiceImpl) DeleteConversation(ctx context.Context, sessionID string) error {
	return s.mapErr(s.repo.DeleteConversation(ctx, sessionID))
}

func (s *chatServiceImpl) publish(ctx context.Context, topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	return s.bus.Publish(pubCtx, topic, data)
}

func (s *chatServiceImpl) mapErr(err error) error {
	if errors.Is(err, repository.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	return err
}

func summary(m *model.Message) string {
	if m.Content != "" {
		return util.Truncate(m.Content, lastMessageLimit)
	}
	switch m.MessageType {
	case model.KindImage:
		return "[图片]"
	case model.KindFile:
		return "[文件]"
	}
	return ""
}

func toMessageDTO(m model.Message) dto.MessageDTO {
	return dto.MessageDTO{
		ID:          m.ID,
		SessionID:   m.SessionID,
		ClientID:    m.ClientID,
		SenderType:  string(m.SenderType),
		SenderName:  m.SenderName,
		Content:     m.Content,
		MessageType: string(m.MessageType),
		FileURL:     m.FileURL,
		CreatedAt:   m.CreatedAt,
	}
}

func toMessageDTOs(msgs []model.Message) []dto.MessageDTO {
	res := make([]dto.MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, toMessageDTO(m))
	}
	return res
}

func toConversationDTO(c model.Conversation) dto.ConversationDTO {
	return dto.ConversationDTO{
		SessionID:     c.SessionID,
		GuestName:     c.GuestName,
		GuestEmail:    c.GuestEmail,
		UserID:        c.UserID,
		RoomID:        c.RoomID,
		RoomName:      c.RoomName,
		Status:        string(c.Status),
		ReadByAdmin:   c.ReadByAdmin,
		ReadByUser:    c.ReadByUser,
		UnreadCount:   c.UnreadCount,
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}
