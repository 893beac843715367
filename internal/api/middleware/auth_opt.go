package middleware

import (
	"Concierge/internal/pkg/security"

	"github.com/gin-gonic/gin"
)

// AuthOptionalMiddleware 可选鉴权：解析成功注入身份，失败或缺失则按匿名访客处理
func AuthOptionalMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(UserIDKey, "")

		token := BearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		if claims, err := security.ValidateToken(secret, token); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}
