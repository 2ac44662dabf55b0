package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterSecureLineRoutes 注册安全线路交接消息路由
func (rt *Router) RegisterSecureLineRoutes(rg *gin.RouterGroup) {
	secureLineGroup := rg.Group("/secure-line")
	{
		secureLineGroup.POST("/message", rt.handlers.SecureLine.PutMessage)
		secureLineGroup.GET("/message", rt.handlers.SecureLine.GetMessage)
	}
}
