package handler

import (
	"Concierge/internal/api/dto"
	"Concierge/internal/pkg/response"
	"Concierge/internal/pkg/security"
	"Concierge/internal/pkg/util"
	"Concierge/internal/service"

	"github.com/gin-gonic/gin"
)

// DevHandler 开发环境签发 Token，仅供本地联调访客端与管理端
type DevHandler struct {
	secret string
}

func NewDevHandler(secret string) *DevHandler {
	return &DevHandler{secret: secret}
}

func (s *DevHandler) IssueToken(c *gin.Context) {
	var req dto.DevTokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}

	token, err := security.GenerateToken(s.secret, req.UserID, req.Name, req.Email, []string{req.Role})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.DevTokenResp{Token: token})
}
