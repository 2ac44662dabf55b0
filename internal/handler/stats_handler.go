// Package handler 提供 HTTP 请求处理器
// 本文件处理统计与健康检查
package handler

import (
	"just_sending_server/internal/service"

	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	statsSvc service.StatsService
}

func NewStatsHandler(statsSvc service.StatsService) *StatsHandler {
	return &StatsHandler{statsSvc: statsSvc}
}

// Raw 按年、月分组的统计
// GET /api/stats/raw
func (h *StatsHandler) Raw(c *gin.Context) {
	data, err := h.statsSvc.ReadAll(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Health 健康检查
// GET /api/test
func (h *StatsHandler) Health(c *gin.Context) {
	HandleSuccess(c, gin.H{"status": "ok"})
}
