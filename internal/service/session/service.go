// Package session 会话生命周期
// 创建（幂等）、连接挂载与卸载、级联销毁，以及到期自动销毁
package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"just_sending_server/internal/dao/mysql/repository"
	myredis "just_sending_server/internal/dao/redis"
	"just_sending_server/internal/infrastructure/storage"
	"just_sending_server/internal/model"
	"just_sending_server/internal/service/sharetoken"
	"just_sending_server/internal/service/stats"
	"just_sending_server/pkg/constants"
	"just_sending_server/pkg/errorx"
)

// ExpiredHandler 到期销毁完成后的回调，connectionIds 为销毁时仍挂载的连接
type ExpiredHandler func(sessionId string, connectionIds []string)

// Service 会话生命周期
type Service struct {
	repos   *repository.Repositories
	kv      myredis.CacheService
	tokens  *sharetoken.Service
	stats   *stats.Service
	uploads *storage.UploadStore
	ttl     time.Duration

	timers sync.Map // sessionId -> *time.Timer

	mu        sync.RWMutex
	onExpired ExpiredHandler
}

// NewSessionService 构造函数，注入所有依赖
func NewSessionService(
	repos *repository.Repositories,
	kv myredis.CacheService,
	tokens *sharetoken.Service,
	statsSvc *stats.Service,
	uploads *storage.UploadStore,
	ttl time.Duration,
) *Service {
	if ttl <= 0 {
		ttl = constants.DEFAULT_SESSION_TTL
	}
	return &Service{
		repos:   repos,
		kv:      kv,
		tokens:  tokens,
		stats:   statsSvc,
		uploads: uploads,
		ttl:     ttl,
	}
}

// TTL 会话存活时间
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// SetExpiredHandler 设置到期回调
func (s *Service) SetExpiredHandler(fn ExpiredHandler) {
	s.mu.Lock()
	s.onExpired = fn
	s.mu.Unlock()
}

// Create 创建会话
// 会话已存在时什么都不做，返回 false，调用方据此跳过配对码分配
func (s *Service) Create(ctx context.Context, id, verification string, isLite bool) (bool, error) {
	session := &model.Session{
		Id:             id,
		IdVerification: verification,
		DateCreated:    time.Now().UTC(),
		IsLiteSession:  isLite,
	}
	created, err := s.repos.Session.Create(ctx, session)
	if err != nil {
		zap.L().Error("创建会话失败", zap.String("session_id", id), zap.Error(err))
		return false, errorx.ErrServerBusy
	}
	if !created {
		return false, nil
	}

	s.stats.RecordEvent(ctx, stats.KindSessions, 1)
	s.schedule(id, s.ttl)
	zap.L().Info("会话已创建", zap.String("session_id", id), zap.Bool("lite", isLite))
	return true, nil
}

// Get 获取会话，不存在返回 CodeNotFound
func (s *Service) Get(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.repos.Session.FindById(ctx, id)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, err
		}
		zap.L().Error("查询会话失败", zap.String("session_id", id), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return session, nil
}

// Verify 校验会话 ID 与校验码，不匹配与不存在同样返回 CodeNotFound
func (s *Service) Verify(ctx context.Context, id, verification string) (*model.Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.IdVerification != verification {
		return nil, errorx.New(errorx.CodeNotFound, "session not found")
	}
	return session, nil
}

// TrackConnection 把连接挂到会话上，返回更新后的会话
// 连接列表整体读改写，并发挂载可能丢失一次更新
func (s *Service) TrackConnection(ctx context.Context, sessionId, connectionId string) (*model.Session, error) {
	session, err := s.Get(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	ids := session.ConnectionIds()
	if !slices.Contains(ids, connectionId) {
		ids = append(ids, connectionId)
		if err := s.repos.Session.UpdateConnectionIds(ctx, sessionId, ids); err != nil {
			zap.L().Error("挂载连接失败", zap.String("session_id", sessionId), zap.String("connection_id", connectionId), zap.Error(err))
			return nil, errorx.ErrServerBusy
		}
		session.SetConnectionIds(ids)
	}

	meta := model.SessionMetaByConnectionId{SessionId: sessionId}
	if err := myredis.SetJSON(ctx, s.kv, constants.KEY_CONNECTION+connectionId, meta, s.ttl); err != nil {
		zap.L().Error("写入连接索引失败", zap.String("connection_id", connectionId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return session, nil
}

// UntrackConnection 从所属会话中卸载连接，返回卸载后的会话
// 连接未挂载或会话已销毁时返回 nil
func (s *Service) UntrackConnection(ctx context.Context, connectionId string) (*model.Session, error) {
	var meta model.SessionMetaByConnectionId
	ok, err := myredis.TakeJSON(ctx, s.kv, constants.KEY_CONNECTION+connectionId, &meta)
	if err != nil {
		zap.L().Error("读取连接索引失败", zap.String("connection_id", connectionId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	if !ok {
		return nil, nil
	}

	session, err := s.repos.Session.FindById(ctx, meta.SessionId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, nil
		}
		zap.L().Error("查询会话失败", zap.String("session_id", meta.SessionId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	ids := slices.DeleteFunc(session.ConnectionIds(), func(id string) bool { return id == connectionId })
	if err := s.repos.Session.UpdateConnectionIds(ctx, session.Id, ids); err != nil {
		zap.L().Error("卸载连接失败", zap.String("session_id", session.Id), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	session.SetConnectionIds(ids)
	return session, nil
}

// Teardown 级联销毁会话，可重复、可并发调用
// 返回销毁开始时挂载的连接；会话已不存在时返回 nil
func (s *Service) Teardown(ctx context.Context, sessionId string) ([]string, error) {
	// 1. 删除上传目录，失败不影响后续步骤
	if err := s.uploads.RemoveSession(sessionId); err != nil {
		zap.L().Warn("删除上传目录失败", zap.String("session_id", sessionId), zap.Error(err))
	}

	// 2. 会话已不存在视为已销毁
	session, err := s.repos.Session.FindById(ctx, sessionId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, nil
		}
		zap.L().Error("查询会话失败", zap.String("session_id", sessionId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	s.stopTimer(sessionId)
	connectionIds := session.ConnectionIds()

	// 3. 消息与公钥
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Message.DeleteBySessionId(ctx, sessionId); err != nil {
			return err
		}
		return tx.PublicKey.DeleteBySessionId(ctx, sessionId)
	})
	if err != nil {
		zap.L().Error("删除会话数据失败", zap.String("session_id", sessionId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	// 4. 连接反向索引与配对码
	for _, cid := range connectionIds {
		if err := s.kv.Delete(ctx, constants.KEY_CONNECTION+cid); err != nil {
			zap.L().Warn("删除连接索引失败", zap.String("connection_id", cid), zap.Error(err))
		}
	}
	if _, err := s.tokens.Cancel(ctx, sessionId); err != nil {
		zap.L().Warn("删除配对码失败", zap.String("session_id", sessionId), zap.Error(err))
	}

	// 5. 最后删除会话本身
	if err := s.repos.Session.Delete(ctx, sessionId); err != nil {
		zap.L().Error("删除会话失败", zap.String("session_id", sessionId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	zap.L().Info("会话已销毁", zap.String("session_id", sessionId), zap.Int("connections", len(connectionIds)))
	if connectionIds == nil {
		connectionIds = []string{}
	}
	return connectionIds, nil
}

// RestoreExpirations 启动时为已存在的会话重新安排到期销毁
// 已过期的会话立即销毁
func (s *Service) RestoreExpirations(ctx context.Context) error {
	sessions, err := s.repos.Session.FindAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, session := range sessions {
		delay := session.DateCreated.Add(s.ttl).Sub(now)
		if delay < 0 {
			delay = 0
		}
		s.schedule(session.Id, delay)
	}
	zap.L().Info("会话到期任务已恢复", zap.Int("count", len(sessions)))
	return nil
}

// Close 停止所有未触发的到期任务
func (s *Service) Close() {
	s.timers.Range(func(key, value any) bool {
		value.(*time.Timer).Stop()
		s.timers.Delete(key)
		return true
	})
}

func (s *Service) schedule(sessionId string, delay time.Duration) {
	timer := time.AfterFunc(delay, func() { s.expire(sessionId) })
	if old, loaded := s.timers.Swap(sessionId, timer); loaded {
		old.(*time.Timer).Stop()
	}
}

func (s *Service) stopTimer(sessionId string) {
	if t, ok := s.timers.LoadAndDelete(sessionId); ok {
		t.(*time.Timer).Stop()
	}
}

// expire 到期触发的销毁
func (s *Service) expire(sessionId string) {
	s.timers.Delete(sessionId)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	connectionIds, err := s.Teardown(ctx, sessionId)
	if err != nil {
		zap.L().Error("会话到期销毁失败", zap.String("session_id", sessionId), zap.Error(err))
		return
	}
	if connectionIds == nil {
		return
	}

	s.mu.RLock()
	fn := s.onExpired
	s.mu.RUnlock()
	if fn != nil {
		fn(sessionId, connectionIds)
	}
}
