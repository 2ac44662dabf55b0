// Package router 提供 HTTP 路由注册
// 本文件定义 WebSocket 相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterWebSocketRoutes 注册 WebSocket 路由
// 请求示例: ws://host:port/ws/conversation
func (rt *Router) RegisterWebSocketRoutes(rg *gin.RouterGroup) {
	rg.GET("/conversation", rt.handlers.Ws.Conversation) // 多设备会话
	rg.GET("/secure-line", rt.handlers.Ws.SecureLine)    // 两人安全线路
}
