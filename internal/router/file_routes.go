package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterFileRoutes 注册附件路由
func (rt *Router) RegisterFileRoutes(rg *gin.RouterGroup) {
	rg.POST("/app/post/files-stream", rt.handlers.File.UploadStream) // 网页端上传
	rg.GET("/app/file/:id/:sessionId", rt.handlers.File.Download)    // 下载
	rg.POST("/f/:sessionId", rt.handlers.File.CliUpload)             // 命令行上传
}
