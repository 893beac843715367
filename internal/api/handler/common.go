package handler

import (
	"Concierge/internal/api/middleware"
	"Concierge/internal/pkg/consts"
	"Concierge/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

// callerOf 由鉴权中间件注入的身份构造请求方
func callerOf(c *gin.Context) service.Caller {
	return service.Caller{
		UserID: c.GetString(middleware.UserIDKey),
		Name:   c.GetString(middleware.NameKey),
		Email:  c.GetString(middleware.EmailKey),
		Admin:  middleware.HasAnyRole(c, consts.RoleAdmin),
	}
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
