package handler

import (
	"Concierge/internal/api/dto"
	"Concierge/internal/pkg/consts"
	"Concierge/internal/pkg/response"
	"Concierge/internal/service"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService service.ChatService
}

func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// InitChat 初始化或续接会话，请求体可为空（登录用户）
func (s *ChatHandler) InitChat(c *gin.Context) {
	var req dto.InitChatReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	res, err := s.chatService.InitChat(c.Request.Context(), callerOf(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetMessages 历史消息分页
func (s *ChatHandler) GetMessages(c *gin.Context) {
	pageNo, ok := queryInt(c, "pageNo", 0)
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	pageSize, ok := queryInt(c, "pageSize", consts.DefaultPageSize)
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	res, err := s.chatService.GetMessages(c.Request.Context(), callerOf(c), c.Param("sessionId"), pageNo, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// MarkRead 访客端已读
func (s *ChatHandler) MarkRead(c *gin.Context) {
	if err := s.chatService.MarkChatRead(c.Request.Context(), callerOf(c), c.Param("sessionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
