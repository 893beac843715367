package model

import (
	"strings"
	"time"
)

// SenderRole 发送方角色
type SenderRole string

const (
	RoleUser  SenderRole = "USER"
	RoleAdmin SenderRole = "ADMIN"
)

// MessageKind 消息类型
type MessageKind string

const (
	KindText  MessageKind = "TEXT"
	KindImage MessageKind = "IMAGE"
	KindFile  MessageKind = "FILE"
)

// KindForMime 根据附件 MIME 推断消息类型，无附件时为 TEXT
func KindForMime(contentType string) MessageKind {
	if contentType == "" {
		return KindText
	}
	if strings.HasPrefix(contentType, "image/") {
		return KindImage
	}
	return KindFile
}

// Message 会话消息
// ClientID 为客户端生成的关联 ID，用于乐观消息与服务端权威消息的对账
type Message struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"sessionId"`
	ClientID    string      `json:"clientId"`
	SenderType  SenderRole  `json:"senderType"`
	SenderName  string      `json:"senderName"`
	Content     string      `json:"content"`
	MessageType MessageKind `json:"messageType"`
	FileURL     string      `json:"fileUrl"`
	CreatedAt   time.Time   `json:"createdAt"`
	Pending     bool        `json:"-"`
}

// SameBody 内容、类型、附件及发送方一致
func (m Message) SameBody(o Message) bool {
	return m.SenderType == o.SenderType &&
		m.Content == o.Content &&
		m.MessageType == o.MessageType &&
		m.FileURL == o.FileURL
}

// TypingSignal 输入状态信号，不持久化
type TypingSignal struct {
	SessionID  string     `json:"sessionId"`
	SenderName string     `json:"senderName"`
	SenderType SenderRole `json:"senderType"`
	Typing     bool       `json:"typing"`
}

// InitRequest 会话初始化请求
type InitRequest struct {
	GuestName  string
	GuestEmail string
	RoomID     string
	SessionID  string
}

// InitResult 会话初始化结果
type InitResult struct {
	SessionID string
	Messages  []Message
}
