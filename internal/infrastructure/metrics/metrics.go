// Package metrics 业务指标
// 统计总量、乐观锁冲突和实时连接数，通过 /metrics 暴露
package metrics

import (
	"just_sending_server/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	totalSessions     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "stat_total_sessions", Help: "Number of sessions."})
	totalFiles        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "stat_total_files", Help: "Number of files."})
	totalFilesSize    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "stat_total_file_size", Help: "Total size of files in bytes."})
	totalDevices      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "stat_total_devices", Help: "Number of devices."})
	totalMessages     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "stat_total_messages", Help: "Number of messages."})
	totalMessagesSize = prometheus.NewGauge(prometheus.GaugeOpts{Name: "stat_total_message_size", Help: "Total size of messages in bytes."})

	statsConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stats_write_conflicts_total",
			Help: "Stats increments dropped because of a version conflict.",
		},
		[]string{"bucket"},
	)

	activeConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Current number of open websocket connections.",
		},
		[]string{"relay"},
	)
)

func init() {
	prometheus.MustRegister(
		totalSessions, totalFiles, totalFilesSize, totalDevices, totalMessages, totalMessagesSize,
		statsConflicts, activeConnections,
	)
}

// SetTotals 用全量统计桶刷新总量指标
func SetTotals(s *model.Stats) {
	if s == nil {
		return
	}
	totalSessions.Set(float64(s.Sessions))
	totalFiles.Set(float64(s.Files))
	totalFilesSize.Set(float64(s.FilesSizeBytes))
	totalDevices.Set(float64(s.Devices))
	totalMessages.Set(float64(s.Messages))
	totalMessagesSize.Set(float64(s.MessagesSizeBytes))
}

// StatsConflict 记录一次被丢弃的统计写入
func StatsConflict(bucket string) {
	statsConflicts.WithLabelValues(bucket).Inc()
}

// ConnectionOpened 连接建立
func ConnectionOpened(relay string) {
	activeConnections.WithLabelValues(relay).Inc()
}

// ConnectionClosed 连接关闭
func ConnectionClosed(relay string) {
	activeConnections.WithLabelValues(relay).Dec()
}
