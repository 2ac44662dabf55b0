package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterLiteRoutes 注册 lite 客户端路由
func (rt *Router) RegisterLiteRoutes(rg *gin.RouterGroup) {
	liteGroup := rg.Group("/app/lite")
	{
		liteGroup.POST("/new", rt.handlers.App.NewLiteSession)
		liteGroup.POST("/poll", rt.handlers.Lite.Poll)
		liteGroup.POST("/share-token/new", rt.handlers.Lite.NewShareToken)
		liteGroup.POST("/share-token/cancel", rt.handlers.Lite.CancelShareToken)
		liteGroup.POST("/erase-session", rt.handlers.Lite.EraseSession)
	}
}
