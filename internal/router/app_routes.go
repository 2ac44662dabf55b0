// Package router 提供 HTTP 路由注册
// 本文件定义会话与消息相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterAppRoutes 注册会话与消息路由
func (rt *Router) RegisterAppRoutes(rg *gin.RouterGroup) {
	appGroup := rg.Group("/app")
	{
		appGroup.POST("/new", rt.handlers.App.NewSession)               // 创建会话
		appGroup.POST("/post", rt.handlers.App.Post)                    // 发送消息
		appGroup.POST("/messages", rt.handlers.App.Messages)            // 增量拉取消息
		appGroup.POST("/message-raw", rt.handlers.App.MessageRaw)       // 单条消息正文
		appGroup.POST("/key", rt.handlers.App.SaveKey)                  // 保存公钥
		appGroup.POST("/connect", rt.pinLimit, rt.handlers.App.Connect) // 配对码兑换（按 IP 限流）
	}
	rg.GET("/k/:id", rt.handlers.App.GetKey) // 获取公钥
}
