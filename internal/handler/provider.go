// Package handler 提供 HTTP 请求处理器
// 本文件定义 Handler 聚合结构和构造函数
// 通过构造函数注入 Service 依赖
package handler

import (
	"just_sending_server/internal/service"
)

// Handlers 聚合所有 Handler 实例
// 作为依赖注入的入口，Router 层通过此结构访问各个 Handler
type Handlers struct {
	App        *AppHandler
	Lite       *LiteHandler
	File       *FileHandler
	SecureLine *SecureLineHandler
	Stats      *StatsHandler
	Ws         *WsHandler
}

// NewHandlers 创建并注入所有 Handler 实例
// svc: Service 层聚合实例
// maxUploadSize: 单个上传文件上限，0 表示不限
func NewHandlers(svc *service.Services, maxUploadSize int64) *Handlers {
	return &Handlers{
		App:        NewAppHandler(svc.Session, svc.ShareToken, svc.Message, svc.Conversation),
		Lite:       NewLiteHandler(svc.Session, svc.ShareToken, svc.Message, svc.Stats, svc.Conversation),
		File:       NewFileHandler(svc.Session, svc.Message, svc.Conversation, maxUploadSize),
		SecureLine: NewSecureLineHandler(svc.SecureLine),
		Stats:      NewStatsHandler(svc.Stats),
		Ws:         NewWsHandler(svc.Conversation, svc.SecureLine),
	}
}
