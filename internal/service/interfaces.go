// Package service 定义业务层接口
// 本文件定义 Handler 层依赖的 Service 接口，具体实现位于各子包
package service

import (
	"context"
	"io"

	"github.com/spf13/afero"

	"just_sending_server/internal/model"
	"just_sending_server/internal/service/chat"
	"just_sending_server/internal/service/message"
	"just_sending_server/internal/service/stats"
)

// SessionService 会话生命周期
type SessionService interface {
	// Create 幂等创建，已存在时返回 false
	Create(ctx context.Context, id, verification string, isLite bool) (bool, error)
	// Get 按 ID 查询，不校验
	Get(ctx context.Context, id string) (*model.Session, error)
	// Verify 按 ID 与校验码查询，不匹配视为不存在
	Verify(ctx context.Context, id, verification string) (*model.Session, error)
}

// ShareTokenService 配对码
type ShareTokenService interface {
	Current(ctx context.Context, sessionId string) (int64, bool, error)
	Allocate(ctx context.Context, sessionId string) (int64, error)
	Redeem(ctx context.Context, token int64) (*model.Session, error)
}

// MessageService 消息、公钥与附件
type MessageService interface {
	Post(ctx context.Context, in message.PostInput) (*model.Message, error)
	AddNotification(ctx context.Context, sessionId, connectionId, text string) (*model.Message, error)
	List(ctx context.Context, id, verification string, from int64) ([]model.Message, error)
	Raw(ctx context.Context, messageId, sessionId string) (string, error)
	SavePublicKey(ctx context.Context, in message.SaveKeyInput) (string, error)
	GetPublicKey(ctx context.Context, id string) (*model.PublicKey, error)
	UploadFile(ctx context.Context, in message.PostInput, fileName string, r io.Reader) (*model.Message, error)
	OpenFile(ctx context.Context, messageId, sessionId string) (afero.File, string, error)
}

// StatsService 统计
type StatsService interface {
	RecordEvent(ctx context.Context, kind stats.Kind, delta int64)
	ReadAll(ctx context.Context) ([]model.StatYear, error)
}

// ConversationNotifier HTTP 接口触发的会话广播
type ConversationNotifier interface {
	chat.Relay
	NotifySession(sessionId string, msg chat.Outbound)
	EraseSession(ctx context.Context, sessionId string)
	CancelShare(ctx context.Context, sessionId string)
}

// SecureLineService 安全线路中继与交接消息
type SecureLineService interface {
	chat.Relay
	PutMessage(ctx context.Context, id, data string) (bool, error)
	TakeMessage(ctx context.Context, id string) (string, bool, error)
}
