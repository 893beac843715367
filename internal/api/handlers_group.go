package api

import "Concierge/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	ChatHandler         *handler.ChatHandler
	ConversationHandler *handler.ConversationHandler
	WSHandler           *handler.WsHandler
	DevHandler          *handler.DevHandler
}
