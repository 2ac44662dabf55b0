// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 升级
package handler

import (
	"just_sending_server/internal/service"
	"just_sending_server/internal/service/chat"

	"github.com/gin-gonic/gin"
)

// WsHandler WebSocket 入口
type WsHandler struct {
	conversation service.ConversationNotifier
	secureLine   service.SecureLineService
}

func NewWsHandler(conversation service.ConversationNotifier, secureLine service.SecureLineService) *WsHandler {
	return &WsHandler{conversation: conversation, secureLine: secureLine}
}

// Conversation 会话中继
// GET /ws/conversation
// 连接建立后客户端发送 {"type":"connect","sessionId":"..."} 加入会话
func (h *WsHandler) Conversation(c *gin.Context) {
	chat.Serve(c.Writer, c.Request, h.conversation)
}

// SecureLine 两人安全线路
// GET /ws/secure-line
func (h *WsHandler) SecureLine(c *gin.Context) {
	chat.Serve(c.Writer, c.Request, h.secureLine)
}
