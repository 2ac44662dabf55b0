// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"just_sending_server/internal/handler"

	"github.com/gin-gonic/gin"
)

// Router 持有 Handler 聚合与需要按路由挂载的中间件
type Router struct {
	handlers *handler.Handlers
	pinLimit gin.HandlerFunc // 配对码兑换限流
}

// NewRouter 创建路由管理器
// pinLimit 为 nil 时不限流
func NewRouter(handlers *handler.Handlers, pinLimit gin.HandlerFunc) *Router {
	if pinLimit == nil {
		pinLimit = func(c *gin.Context) { c.Next() }
	}
	return &Router{handlers: handlers, pinLimit: pinLimit}
}

// RegisterRoutes 注册所有路由
// 在 https_server.Init() 中调用
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	rt.RegisterAppRoutes(api)        // 会话、消息、公钥、配对码
	rt.RegisterLiteRoutes(api)       // lite 客户端
	rt.RegisterFileRoutes(api)       // 附件
	rt.RegisterSecureLineRoutes(api) // 安全线路交接消息
	rt.RegisterStatsRoutes(api)      // 统计与健康检查

	rt.RegisterWebSocketRoutes(r.Group("/ws"))
}
