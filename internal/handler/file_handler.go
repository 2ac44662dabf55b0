// Package handler 提供 HTTP 请求处理器
// 本文件处理附件上传与下载
package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
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

// multipart 表单字段与边界的额外开销
const multipartOverhead = 1 << 20

// FileHandler 附件请求处理器
type FileHandler struct {
	sessionSvc    service.SessionService
	messageSvc    service.MessageService
	conversation  service.ConversationNotifier
	maxUploadSize int64
}

func NewFileHandler(
	sessionSvc service.SessionService,
	messageSvc service.MessageService,
	conversation service.ConversationNotifier,
	maxUploadSize int64,
) *FileHandler {
	return &FileHandler{
		sessionSvc:    sessionSvc,
		messageSvc:    messageSvc,
		conversation:  conversation,
		maxUploadSize: maxUploadSize,
	}
}

var errPayloadTooLarge = errorx.New(errorx.CodePayloadTooLarge, "The posted file is too large")

// limitBody 请求体超过上限时读取报错，而不是把整个请求读进临时文件
func (h *FileHandler) limitBody(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)
	}
}

// formFile 读取 file 字段
func formFile(c *gin.Context) (multipart.File, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", errPayloadTooLarge
		}
		return nil, "", errorx.Wrap(err, errorx.CodeNotFound, "No file posted")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", errorx.Wrap(err, errorx.CodeInvalidParam, "cannot read posted file")
	}
	return f, fh.Filename, nil
}

// UploadStream 网页端上传附件
// POST /api/app/post/files-stream
// 表单字段：SessionId、SessionVerification、SocketConnectionId、EncryptionPublicKeyAlias、ComposerText、file
func (h *FileHandler) UploadStream(c *gin.Context) {
	h.limitBody(c)
	var req request.PostMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HandleError(c, errPayloadTooLarge)
			return
		}
		HandleParamError(c, err)
		return
	}
	f, name, err := formFile(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	defer f.Close()

	msg, err := h.messageSvc.UploadFile(c.Request.Context(), message.PostInput{
		SessionId:                req.SessionId,
		SessionVerification:      req.SessionVerification,
		SocketConnectionId:       req.SocketConnectionId,
		EncryptionPublicKeyAlias: req.EncryptionPublicKeyAlias,
		Text:                     req.ComposerText,
	}, name, f)
	if err != nil {
		HandleError(c, err)
		return
	}
	h.conversation.NotifySession(req.SessionId, chat.RequestReloadMessage())
	HandleSuccessStatus(c, http.StatusAccepted, respond.IdRespond{Id: msg.Id})
}

// CliUpload 命令行上传，例如 curl -F file=@a.txt
// POST /api/f/:sessionId
// 会话必须已有设备在线，否则上传的文件无人接收
func (h *FileHandler) CliUpload(c *gin.Context) {
	sessionId := c.Param("sessionId")
	ctx := c.Request.Context()

	session, err := h.sessionSvc.Get(ctx, sessionId)
	if err != nil {
		if errorx.IsNotFound(err) {
			err = errorx.New(errorx.CodeSessionNotExist, "Invalid Session, start a session in the browser first.")
		}
		HandleError(c, err)
		return
	}
	if len(session.ConnectionIds()) == 0 {
		HandleError(c, errorx.New(errorx.CodeInvalidParam,
			"No client is connected, the session may be lost. Try starting the session again or refreshing the browser window."))
		return
	}

	h.limitBody(c)
	var req request.CliUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	f, name, err := formFile(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	defer f.Close()

	msg, err := h.messageSvc.UploadFile(ctx, message.PostInput{
		SessionId:                sessionId,
		EncryptionPublicKeyAlias: req.EncryptionPublicKeyAlias,
		Text:                     req.ComposerText,
	}, name, f)
	if err != nil {
		HandleError(c, err)
		return
	}
	h.conversation.NotifySession(sessionId, chat.RequestReloadMessage())
	zap.L().Info("命令行上传", zap.String("session_id", sessionId), zap.Int64("size", *msg.FileSizeBytes))

	HandleSuccess(c, respond.CliUploadRespond{
		SessionId:   sessionId,
		MessageId:   msg.Id,
		FileName:    *msg.FileName,
		FileSize:    *msg.FileSizeBytes,
		DownloadUrl: fmt.Sprintf("/api/app/file/%s/%s", msg.Id, sessionId),
	})
}

// Download 下载附件
// GET /api/app/file/:id/:sessionId
func (h *FileHandler) Download(c *gin.Context) {
	f, name, err := h.messageSvc.OpenFile(c.Request.Context(), c.Param("id"), c.Param("sessionId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		HandleError(c, err)
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", f, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}
