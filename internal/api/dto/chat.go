package dto

import "time"

// InitChatReq 会话初始化请求体
type InitChatReq struct {
	GuestName  string `json:"guestName,omitempty" validate:"omitempty,max=64"`
	GuestEmail string `json:"guestEmail,omitempty" validate:"omitempty,email"`
	RoomID     string `json:"roomId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
}

// InitChatResp 会话初始化响应
type InitChatResp struct {
	SessionID string       `json:"sessionId"`
	Messages  []MessageDTO `json:"messages"`
}

// MessageDTO 消息明细
type MessageDTO struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	ClientID    string    `json:"clientId,omitempty"`
	SenderType  string    `json:"senderType"`
	SenderName  string    `json:"senderName,omitempty"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType"`
	FileURL     string    `json:"fileUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SendMessagePayload 实时通道发送消息载荷
type SendMessagePayload struct {
	SessionID   string `json:"sessionId" validate:"required"`
	ClientID    string `json:"clientId,omitempty"`
	Content     string `json:"content"`
	MessageType string `json:"messageType" validate:"required,oneof=TEXT IMAGE FILE"`
	FileURL     string `json:"fileUrl,omitempty"`
	SenderName  string `json:"senderName,omitempty"`
}

// TypingPayload 输入状态载荷
type TypingPayload struct {
	Typing     bool   `json:"typing"`
	SenderName string `json:"senderName"`
	SenderType string `json:"senderType,omitempty"`
}

// ConversationDTO 会话列表项
type ConversationDTO struct {
	SessionID     string    `json:"sessionId"`
	GuestName     string    `json:"guestName"`
	GuestEmail    string    `json:"guestEmail,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	RoomID        string    `json:"roomId,omitempty"`
	RoomName      string    `json:"roomName,omitempty"`
	Status        string    `json:"status"`
	ReadByAdmin   bool      `json:"readByAdmin"`
	ReadByUser    bool      `json:"readByUser"`
	UnreadCount   int       `json:"unreadCount"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// UpdateStatusReq 会话状态变更请求
type UpdateStatusReq struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE RESOLVED"`
}

// PageDTO 分页响应
type PageDTO[T any] struct {
	Items       []T  `json:"items"`
	PageNo      int  `json:"pageNo"`
	PageSize    int  `json:"pageSize"`
	HasNextPage bool `json:"hasNextPage"`
}

// DevTokenReq 开发环境签发 Token 请求
type DevTokenReq struct {
	UserID string `json:"userId" validate:"required,max=64"`
	Name   string `json:"name" validate:"required,max=64"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
	Role   string `json:"role" validate:"required,oneof=USER ADMIN"`
}

// DevTokenResp 开发环境签发 Token 响应
type DevTokenResp struct {
	Token string `json:"token"`
}
