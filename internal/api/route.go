package api

import (
	"Concierge/internal/api/middleware"
	"Concierge/internal/pkg/consts"
	"Concierge/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterOptions 路由参数
type RouterOptions struct {
	JWTSecret    string
	LogIndex     string
	AllowOrigins []string
}

func SetupRouter(group *HandlersGroup, opts RouterOptions) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware(consts.LiveChannelPath))
	r.Use(middleware.CORSMiddleware(opts.AllowOrigins...))
	logger.SetupGin(r, opts.LogIndex, "/api/ping")

	r.GET(consts.LiveChannelPath, group.WSHandler.Connect)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		if group.DevHandler != nil {
			apiGroup.POST("/dev/token", group.DevHandler.IssueToken)
		}

		// 访客端：匿名访客与登录用户均可访问
		chatGroup := apiGroup.Group("/chat")
		chatGroup.Use(middleware.AuthOptionalMiddleware(opts.JWTSecret))
		{
			chatGroup.POST("/init", group.ChatHandler.InitChat)
			chatGroup.GET("/:sessionId/messages", group.ChatHandler.GetMessages)
			chatGroup.POST("/:sessionId/read", group.ChatHandler.MarkRead)
		}

		// 管理端：需要登录 & 拥有 admin 角色
		convGroup := apiGroup.Group("/conversations")
		convGroup.Use(middleware.AuthMiddleware(opts.JWTSecret), middleware.CheckRoles(consts.RoleAdmin))
		{
			convGroup.GET("", group.ConversationHandler.List)
			convGroup.POST("/:id/read", group.ConversationHandler.MarkRead)
			convGroup.POST("/:id/status", group.ConversationHandler.UpdateStatus)
			convGroup.DELETE("/:id", group.ConversationHandler.Delete)
		}
	}

	return r
}
