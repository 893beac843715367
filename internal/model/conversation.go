package model

import "time"

// ConversationStatus 会话状态
type ConversationStatus string

const (
	StatusActive   ConversationStatus = "ACTIVE"
	StatusResolved ConversationStatus = "RESOLVED"
)

// StatusFilter 会话列表状态筛选
type StatusFilter string

const (
	FilterAll      StatusFilter = "ALL"
	FilterActive   StatusFilter = "ACTIVE"
	FilterResolved StatusFilter = "RESOLVED"
)

// Toggled 返回切换后的状态
func (s ConversationStatus) Toggled() ConversationStatus {
	if s == StatusResolved {
		return StatusActive
	}
	return StatusResolved
}

// Conversation 客服会话（以 SessionID 标识）
type Conversation struct {
	SessionID     string             `json:"sessionId"`
	GuestName     string             `json:"guestName"`
	GuestEmail    string             `json:"guestEmail"`
	UserID        string             `json:"userId"`
	RoomID        string             `json:"roomId"`
	RoomName      string             `json:"roomName"`
	Status        ConversationStatus `json:"status"`
	ReadByAdmin   bool               `json:"readByAdmin"`
	ReadByUser    bool               `json:"readByUser"`
	UnreadCount   int                `json:"unreadCount"`
	LastMessage   string             `json:"lastMessage"`
	LastMessageAt time.Time          `json:"lastMessageAt"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// HasUnread 管理端视角是否存在未读
func (c Conversation) HasUnread() bool {
	return !c.ReadByAdmin || c.UnreadCount > 0
}

// DisplayName 会话参与者展示名
func (c Conversation) DisplayName() string {
	if c.GuestName != "" {
		return c.GuestName
	}
	if c.GuestEmail != "" {
		return c.GuestEmail
	}
	return c.SessionID
}

// ConversationQuery 会话列表查询条件
type ConversationQuery struct {
	PageNo   int
	PageSize int
	Search   string
	SortBy   string
	Status   StatusFilter
}

// Page 分页结果
type Page[T any] struct {
	Items       []T
	PageNo      int
	HasNextPage bool
}
