package dto

import "github.com/goccy/go-json"

// FrameType 实时通道帧类型
type FrameType string

const (
	FrameSubscribe   FrameType = "SUBSCRIBE"
	FrameUnsubscribe FrameType = "UNSUBSCRIBE"
	FrameSend        FrameType = "SEND"
	FrameMessage     FrameType = "MESSAGE"
	FrameError       FrameType = "ERROR"
)

// Frame 实时通道帧，Body 为目的地对应的 JSON 载荷
type Frame struct {
	Type        FrameType       `json:"type"`
	Destination string          `json:"destination,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	Message     string          `json:"message,omitempty"`
}
