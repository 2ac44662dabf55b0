package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterStatsRoutes 注册统计与健康检查路由
func (rt *Router) RegisterStatsRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats/raw", rt.handlers.Stats.Raw)
	rg.GET("/test", rt.handlers.Stats.Health)
}
