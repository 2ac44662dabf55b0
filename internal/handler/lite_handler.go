// Package handler 提供 HTTP 请求处理器
// 本文件处理 lite 客户端（轮询，不使用 WebSocket）的请求
package handler

import (
	"context"

	"just_sending_server/internal/dto/request"
	"just_sending_server/internal/dto/respond"
	"just_sending_server/internal/service"
	"just_sending_server/internal/service/chat"
	"just_sending_server/internal/service/sharetoken"
	"just_sending_server/internal/service/stats"
	"just_sending_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const liteSessionCreated = "Session Created"

// LiteHandler lite 会话请求处理器
type LiteHandler struct {
	sessionSvc   service.SessionService
	tokenSvc     service.ShareTokenService
	messageSvc   service.MessageService
	statsSvc     service.StatsService
	conversation service.ConversationNotifier
}

func NewLiteHandler(
	sessionSvc service.SessionService,
	tokenSvc service.ShareTokenService,
	messageSvc service.MessageService,
	statsSvc service.StatsService,
	conversation service.ConversationNotifier,
) *LiteHandler {
	return &LiteHandler{
		sessionSvc:   sessionSvc,
		tokenSvc:     tokenSvc,
		messageSvc:   messageSvc,
		statsSvc:     statsSvc,
		conversation: conversation,
	}
}

// Poll lite 客户端轮询
// POST /api/app/lite/poll
// 会话不存在时创建 lite 会话并分配配对码；校验码不匹配返回 404
func (h *LiteHandler) Poll(c *gin.Context) {
	var req request.LitePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	ctx := c.Request.Context()

	session, err := h.sessionSvc.Get(ctx, req.Id)
	switch {
	case err == nil && session.IdVerification != req.Id2:
		HandleError(c, errorx.New(errorx.CodeNotFound, "session not found"))
		return
	case err == nil:
		h.statsSvc.RecordEvent(ctx, stats.KindDevices, 1)
	case errorx.IsNotFound(err):
		if err := h.createLiteSession(ctx, req.Id, req.Id2); err != nil {
			HandleError(c, err)
			return
		}
	default:
		HandleError(c, err)
		return
	}

	resp := respond.LitePollRespond{HasSession: true}
	token, ok, err := h.tokenSvc.Current(ctx, req.Id)
	if err != nil {
		HandleError(c, err)
		return
	}
	if ok {
		formatted := sharetoken.FormatToken(token)
		resp.HasToken = true
		resp.Token = &formatted
	}

	from := int64(-1)
	if req.From != nil {
		from = *req.From
	}
	resp.Messages, err = h.messageSvc.List(ctx, req.Id, req.Id2, from)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, resp)
}

// createLiteSession 并发创建时只有真正创建的一方分配配对码
func (h *LiteHandler) createLiteSession(ctx context.Context, id, verification string) error {
	created, err := h.sessionSvc.Create(ctx, id, verification, true)
	if err != nil || !created {
		return err
	}
	if _, err := h.tokenSvc.Allocate(ctx, id); err != nil {
		zap.L().Warn("lite 会话分配配对码失败", zap.String("session_id", id), zap.Error(err))
	}
	if _, err := h.messageSvc.AddNotification(ctx, id, "", liteSessionCreated); err != nil {
		zap.L().Warn("写入创建通知失败", zap.String("session_id", id), zap.Error(err))
	}
	return nil
}

// verify 校验请求中的会话，失败时已写出响应
func (h *LiteHandler) verify(c *gin.Context) (string, bool) {
	var req request.SessionRequest
	if err := c.ShouldBind(&req); err != nil {
		HandleParamError(c, err)
		return "", false
	}
	if _, err := h.sessionSvc.Verify(c.Request.Context(), req.SessionId, req.SessionVerification); err != nil {
		if errorx.IsNotFound(err) {
			err = errorx.ErrSessionNotExist
		}
		HandleError(c, err)
		return "", false
	}
	return req.SessionId, true
}

// NewShareToken 获取或分配配对码
// POST /api/app/lite/share-token/new
func (h *LiteHandler) NewShareToken(c *gin.Context) {
	sessionId, ok := h.verify(c)
	if !ok {
		return
	}
	token, err := h.tokenSvc.Allocate(c.Request.Context(), sessionId)
	if err != nil {
		HandleError(c, err)
		return
	}
	h.conversation.NotifySession(sessionId, chat.ShowSharePanel(token))
	HandleSuccess(c, respond.ShareTokenRespond{Token: sharetoken.FormatToken(token)})
}

// CancelShareToken 取消配对码
// POST /api/app/lite/share-token/cancel
func (h *LiteHandler) CancelShareToken(c *gin.Context) {
	sessionId, ok := h.verify(c)
	if !ok {
		return
	}
	h.conversation.CancelShare(c.Request.Context(), sessionId)
	HandleSuccess(c, nil)
}

// EraseSession 销毁会话
// POST /api/app/lite/erase-session
func (h *LiteHandler) EraseSession(c *gin.Context) {
	sessionId, ok := h.verify(c)
	if !ok {
		return
	}
	h.conversation.EraseSession(c.Request.Context(), sessionId)
	HandleSuccess(c, nil)
}
