package handler

import (
	"Concierge/internal/api/dto"
	"Concierge/internal/model"
	"Concierge/internal/pkg/consts"
	"Concierge/internal/pkg/response"
	"Concierge/internal/pkg/util"
	"Concierge/internal/service"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	chatService service.ChatService
}

func NewConversationHandler(chatService service.ChatService) *ConversationHandler {
	return &ConversationHandler{chatService: chatService}
}

// List 会话列表，支持 search / status / sortBy
func (s *ConversationHandler) List(c *gin.Context) {
	pageNo, ok := queryInt(c, "pageNo", 0)
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	pageSize, ok := queryInt(c, "pageSize", consts.DefaultConversationSize)
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	status := model.StatusFilter(c.DefaultQuery("status", string(model.FilterAll)))
	if err := util.ValidateVar(string(status), "oneof=ALL ACTIVE RESOLVED"); err != nil {
		response.Error(c, service.ErrStatusInvalid)
		return
	}

	res, err := s.chatService.ListConversations(c.Request.Context(), model.ConversationQuery{
		PageNo:   pageNo,
		PageSize: pageSize,
		Search:   c.Query("search"),
		SortBy:   c.Query("sortBy"),
		Status:   status,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// MarkRead 管理端已读
func (s *ConversationHandler) MarkRead(c *gin.Context) {
	if err := s.chatService.MarkConversationRead(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// UpdateStatus 会话状态变更
func (s *ConversationHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, service.ErrStatusInvalid)
		return
	}

	if err := s.chatService.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Delete 删除会话
func (s *ConversationHandler) Delete(c *gin.Context) {
	if err := s.chatService.DeleteConversation(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
