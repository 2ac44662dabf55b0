// Package handler 提供 HTTP 请求处理器
// 本文件处理会话创建、消息、公钥与配对码兑换
package handler

import (
	"net/http"

	"just_sending_server/internal/dto/request"
	"just_sending_server/internal/dto/respond"
	"just_sending_server/internal/service"
	"just_sending_server/internal/service/chat"
	"just_sending_server/internal/service/message"
	"just_sending_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AppHandler 会话与消息请求处理器
type AppHandler struct {
	sessionSvc   service.SessionService
	tokenSvc     service.ShareTokenService
	messageSvc   service.MessageService
	conversation service.ConversationNotifier
}

func NewAppHandler(
	sessionSvc service.SessionService,
	tokenSvc service.ShareTokenService,
	messageSvc service.MessageService,
	conversation service.ConversationNotifier,
) *AppHandler {
	return &AppHandler{
		sessionSvc:   sessionSvc,
		tokenSvc:     tokenSvc,
		messageSvc:   messageSvc,
		conversation: conversation,
	}
}

// NewSession 创建会话
// POST /api/app/new
// 会话已存在返回 200，新建返回 202 并预先分配配对码
func (h *AppHandler) NewSession(c *gin.Context) {
	h.newSession(c, false)
}

// NewLiteSession 创建 lite 会话
// POST /api/app/lite/new
func (h *AppHandler) NewLiteSession(c *gin.Context) {
	h.newSession(c, true)
}

func (h *AppHandler) newSession(c *gin.Context, isLite bool) {
	var req request.NewSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	ctx := c.Request.Context()
	created, err := h.sessionSvc.Create(ctx, req.Id, req.Id2, isLite)
	if err != nil {
		HandleError(c, err)
		return
	}
	if !created {
		HandleSuccess(c, nil)
		return
	}
	if _, err := h.tokenSvc.Allocate(ctx, req.Id); err != nil {
		zap.L().Warn("新会话分配配对码失败", zap.String("session_id", req.Id), zap.Error(err))
	}
	HandleSuccessStatus(c, http.StatusAccepted, nil)
}

// Post 发送文本消息
// POST /api/app/post
func (h *AppHandler) Post(c *gin.Context) {
	var req request.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	msg, err := h.messageSvc.Post(c.Request.Context(), message.PostInput{
		SessionId:                req.SessionId,
		SessionVerification:      req.SessionVerification,
		SocketConnectionId:       req.SocketConnectionId,
		EncryptionPublicKeyAlias: req.EncryptionPublicKeyAlias,
		Text:                     req.ComposerText,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	h.conversation.NotifySession(req.SessionId, chat.RequestReloadMessage())
	HandleSuccessStatus(c, http.StatusAccepted, respond.IdRespond{Id: msg.Id})
}

// Messages 增量拉取消息，最新的在前
// POST /api/app/messages
func (h *AppHandler) Messages(c *gin.Context) {
	var req request.MessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	from := int64(-1)
	if req.From != nil {
		from = *req.From
	}
	msgs, err := h.messageSvc.List(c.Request.Context(), req.Id, req.Id2, from)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, msgs)
}

// MessageRaw 获取单条消息正文
// POST /api/app/message-raw
func (h *AppHandler) MessageRaw(c *gin.Context) {
	var req request.MessageRawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	content, err := h.messageSvc.Raw(c.Request.Context(), req.MessageId, req.SessionId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.MessageRawRespond{Content: content})
}

// SaveKey 保存会话公钥
// POST /api/app/key
func (h *AppHandler) SaveKey(c *gin.Context) {
	var req request.SaveKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	id, err := h.messageSvc.SavePublicKey(c.Request.Context(), message.SaveKeyInput{
		SessionId:           req.SessionId,
		SessionVerification: req.SessionVerification,
		Alias:               req.Alias,
		PublicKey:           req.PublicKey,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.IdRespond{Id: id})
}

// GetKey 获取公钥
// GET /api/k/:id
func (h *AppHandler) GetKey(c *gin.Context) {
	key, err := h.messageSvc.GetPublicKey(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, key)
}

// Connect 用配对码加入会话
// POST /api/app/connect
// 配对码一次性有效，兑换后通知会话内的设备收起分享面板
func (h *AppHandler) Connect(c *gin.Context) {
	var req request.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	token := req.Value()
	if token <= 0 {
		HandleError(c, errorx.ErrTokenInvalid)
		return
	}
	session, err := h.tokenSvc.Redeem(c.Request.Context(), token)
	if err != nil {
		HandleError(c, err)
		return
	}
	h.conversation.NotifySession(session.Id, chat.HideSharePanel())
	HandleSuccess(c, respond.ConnectRespond{
		SessionId:           session.Id,
		SessionVerification: session.IdVerification,
		IsLiteSession:       session.IsLiteSession,
	})
}
