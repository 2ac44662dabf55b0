// Package handler 提供 HTTP 请求处理器
// 本文件处理安全线路的一次性交接消息
package handler

import (
	"net/http"

	"just_sending_server/internal/dto/request"
	"just_sending_server/internal/dto/respond"
	"just_sending_server/internal/service"
	"just_sending_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// SecureLineHandler 交接消息请求处理器
type SecureLineHandler struct {
	secureLine service.SecureLineService
}

func NewSecureLineHandler(secureLine service.SecureLineService) *SecureLineHandler {
	return &SecureLineHandler{secureLine: secureLine}
}

// PutMessage 暂存交接消息
// POST /api/secure-line/message
func (h *SecureLineHandler) PutMessage(c *gin.Context) {
	var req request.HandoffPutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	stored, err := h.secureLine.PutMessage(c.Request.Context(), req.Id, req.Data)
	if err != nil {
		HandleError(c, err)
		return
	}
	if !stored {
		HandleError(c, errorx.New(errorx.CodeConflict, "message id already taken"))
		return
	}
	HandleSuccessStatus(c, http.StatusCreated, respond.IdRespond{Id: req.Id})
}

// GetMessage 取走交接消息，第二次读取返回 404
// GET /api/secure-line/message?id=
func (h *SecureLineHandler) GetMessage(c *gin.Context) {
	var req request.HandoffGetRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, ok, err := h.secureLine.TakeMessage(c.Request.Context(), req.Id)
	if err != nil {
		HandleError(c, err)
		return
	}
	if !ok {
		HandleError(c, errorx.New(errorx.CodeNotFound, "message not found"))
		return
	}
	HandleSuccess(c, data)
}
