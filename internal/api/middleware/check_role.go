package middleware

import (
	"Concierge/internal/pkg/response"
	"slices"

	"github.com/gin-gonic/gin"
)

// CheckRoles 检查当前用户是否拥有至少一个指定的角色
func CheckRoles(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasAnyRole(c, requiredRoles...) {
			response.Fail(c, response.Forbidden, "权限不足：无权访问该资源")
			c.Abort()
			return
		}
		c.Next()
	}
}

// HasAnyRole 当前身份是否拥有任一角色
func HasAnyRole(c *gin.Context, roles ...string) bool {
	owned := c.GetStringSlice(RolesKey)
	for _, r := range roles {
		if slices.Contains(owned, r) {
			return true
		}
	}
	return false
}
