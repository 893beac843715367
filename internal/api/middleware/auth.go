package middleware

import (
	"Concierge/internal/pkg/consts"
	"Concierge/internal/pkg/response"
	"Concierge/internal/pkg/security"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	UserIDKey = "user_id"
	RolesKey  = "roles"
	NameKey   = "name"
	EmailKey  = "email"
)

// AuthMiddleware 负责验证 JWT 并将用户身份信息注入 Context
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := BearerToken(c)
		if tokenString == "" {
			response.Fail(c, response.Unauthorized, "Token 缺失或格式错误")
			c.Abort()
			return
		}

		claims, err := security.ValidateToken(secret, tokenString)
		if err != nil {
			response.Fail(c, response.Unauthorized, "Token 无效或已过期")
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// BearerToken 读取 Authorization 头，浏览器实时通道无法设置请求头时退回 ?token=
func BearerToken(c *gin.Context) string {
	authHeader := c.GetHeader(consts.AuthorizationHeader)
	if strings.HasPrefix(authHeader, consts.BearerPrefix) {
		return strings.TrimPrefix(authHeader, consts.BearerPrefix)
	}
	return c.Query(consts.TokenQueryParam)
}

func setClaims(c *gin.Context, claims *security.UserClaims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(RolesKey, claims.Roles)
	c.Set(NameKey, claims.Name)
	c.Set(EmailKey, claims.Email)
}
