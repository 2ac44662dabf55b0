// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"context"

	"just_sending_server/internal/config"
	"just_sending_server/internal/dao/mysql/repository"
	myredis "just_sending_server/internal/dao/redis"
	"just_sending_server/internal/infrastructure/storage"
	"just_sending_server/internal/service/chat"
	"just_sending_server/internal/service/message"
	"just_sending_server/internal/service/session"
	"just_sending_server/internal/service/sharetoken"
	"just_sending_server/internal/service/stats"
)

// Services 聚合所有 Service 实例
// 作为依赖注入的入口，Handler 层通过此结构访问各个 Service
type Services struct {
	Session      SessionService
	ShareToken   ShareTokenService
	Message      MessageService
	Stats        StatsService
	Conversation ConversationNotifier
	SecureLine   SecureLineService

	lifecycle *session.Service
}

// NewServices 创建并注入所有 Service 实例
// 依赖注入流程：
//  1. 统计、配对码这些无依赖的服务
//  2. 会话生命周期与消息服务
//  3. 两个中继，并把会话到期回调接到会话中继上
func NewServices(
	repos *repository.Repositories,
	kv myredis.CacheService,
	uploads *storage.UploadStore,
	conf *config.AppConfig,
) *Services {
	statsSvc := stats.NewStatsService(repos.Stats, kv, conf.StatsCacheTTL())
	tokens := sharetoken.NewShareTokenService(kv, repos.Session, conf.SessionTTL())
	sessions := session.NewSessionService(repos, kv, tokens, statsSvc, uploads, conf.SessionTTL())
	messages := message.NewMessageService(repos, sessions, statsSvc, uploads, conf.MaxUploadSizeBytes)

	conversation := chat.NewConversationRelay(sessions, tokens, messages, statsSvc)
	sessions.SetExpiredHandler(conversation.HandleExpired)

	return &Services{
		Session:      sessions,
		ShareToken:   tokens,
		Message:      messages,
		Stats:        statsSvc,
		Conversation: conversation,
		SecureLine:   chat.NewSecureLineRelay(statsSvc, kv, 0),
		lifecycle:    sessions,
	}
}

// RestoreExpirations 启动时恢复已有会话的到期任务
func (s *Services) RestoreExpirations(ctx context.Context) error {
	return s.lifecycle.RestoreExpirations(ctx)
}

// Close 停止到期任务
func (s *Services) Close() {
	s.lifecycle.Close()
}
