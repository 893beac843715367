package util

import (
	"Concierge/internal/pkg/consts"
	"strings"
)

// ChatTopic 会话消息订阅主题
func ChatTopic(sessionID string) string {
	return consts.TopicChatPrefix + sessionID
}

// TypingTopic 会话输入状态订阅主题
func TypingTopic(sessionID string) string {
	return consts.TopicChatPrefix + sessionID + consts.TopicTypingSuffix
}

// TypingDestination 输入状态发布目的地
func TypingDestination(sessionID string) string {
	return consts.DestTypingPrefix + sessionID
}

// ParseTopic 解析订阅主题，返回会话 ID 以及是否为输入状态主题
func ParseTopic(topic string) (sessionID string, typing bool, ok bool) {
	rest, found := strings.CutPrefix(topic, consts.TopicChatPrefix)
	if !found || rest == "" {
		return "", false, false
	}
	if id, isTyping := strings.CutSuffix(rest, consts.TopicTypingSuffix); isTyping {
		return id, true, id != ""
	}
	if strings.Contains(rest, "/") {
		return "", false, false
	}
	return rest, false, true
}

// ParseTypingDestination 从输入状态目的地解析会话 ID
func ParseTypingDestination(dest string) (string, bool) {
	id, found := strings.CutPrefix(dest, consts.DestTypingPrefix)
	if !found || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
