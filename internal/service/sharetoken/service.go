// Package sharetoken 配对码（PIN）的分配、兑换与取消
// 配对码与会话在 KV 中双向绑定：share:token:<n> -> 会话，share:session:<id> -> 配对码
package sharetoken

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"just_sending_server/internal/dao/mysql/repository"
	myredis "just_sending_server/internal/dao/redis"
	"just_sending_server/internal/model"
	"just_sending_server/pkg/constants"
	"just_sending_server/pkg/errorx"
	"just_sending_server/pkg/util/random"
)

// Service 配对码分配器
// 取值区间 [min, max) 会随冲突次数自适应放大
type Service struct {
	kv       myredis.CacheService
	sessions repository.SessionRepository
	ttl      time.Duration

	mu    sync.Mutex
	min   int64
	max   int64
	tries int64
}

// NewShareTokenService 创建配对码服务
// ttl 为绑定关系的过期时间，一般与会话存活时间相同，0 表示不过期
func NewShareTokenService(kv myredis.CacheService, sessions repository.SessionRepository, ttl time.Duration) *Service {
	return &Service{
		kv:       kv,
		sessions: sessions,
		ttl:      ttl,
		min:      constants.SHARE_TOKEN_MIN,
		max:      constants.SHARE_TOKEN_MAX,
	}
}

// FormatToken 配对码展示格式，至少 6 位，不足补零
func FormatToken(token int64) string {
	return fmt.Sprintf("%06d", token)
}

func tokenKey(token int64) string {
	return constants.KEY_SHARE_TOKEN + strconv.FormatInt(token, 10)
}

func sessionKey(sessionId string) string {
	return constants.KEY_SHARE_SESSION + sessionId
}

// draw 在当前区间内抽取一个候选
func (s *Service) draw() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return random.GetRandomInt64Range(s.min, s.max)
}

// collide 记录一次冲突，冲突次数超过区间宽度一半时区间两端各乘 10
func (s *Service) collide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tries++
	if s.tries > (s.max-s.min)/2 {
		s.min *= 10
		s.max *= 10
		s.tries = 0
		zap.L().Info("配对码区间扩大", zap.Int64("min", s.min), zap.Int64("max", s.max))
	}
}

// Current 查询会话当前有效的配对码
func (s *Service) Current(ctx context.Context, sessionId string) (int64, bool, error) {
	var bound model.SessionShareToken
	ok, err := myredis.GetJSON(ctx, s.kv, sessionKey(sessionId), &bound)
	if err != nil || !ok {
		return 0, false, err
	}
	return bound.Token, true, nil
}

// Allocate 为会话分配配对码
// 会话已有有效配对码时直接返回该配对码
func (s *Service) Allocate(ctx context.Context, sessionId string) (int64, error) {
	if token, ok, err := s.Current(ctx, sessionId); err != nil {
		return 0, err
	} else if ok {
		return token, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		// 1. 抢占配对码，SetNX 保证同一个码只会绑定一个会话
		token := s.draw()
		claimed, err := myredis.SetNXJSON(ctx, s.kv, tokenKey(token), model.ShareToken{Id: token, SessionId: sessionId}, s.ttl)
		if err != nil {
			return 0, err
		}
		if !claimed {
			s.collide()
			continue
		}

		// 2. 写反向索引，并发分配时以先写入者为准
		bound, err := myredis.SetNXJSON(ctx, s.kv, sessionKey(sessionId), model.SessionShareToken{Token: token}, s.ttl)
		if err != nil {
			_ = s.kv.Delete(ctx, tokenKey(token))
			return 0, err
		}
		if !bound {
			_ = s.kv.Delete(ctx, tokenKey(token))
			winner, ok, err := s.Current(ctx, sessionId)
			if err != nil {
				return 0, err
			}
			if ok {
				return winner, nil
			}
			// 对方已经被兑换或取消，重新分配
			continue
		}

		zap.L().Debug("分配配对码", zap.String("session_id", sessionId), zap.Int64("token", token))
		return token, nil
	}
}

// Redeem 兑换配对码，配对码只能使用一次
//   - 配对码不存在或已使用：ErrTokenInvalid
//   - 绑定的会话已不存在：ErrSessionNotExist
func (s *Service) Redeem(ctx context.Context, token int64) (*model.Session, error) {
	var share model.ShareToken
	ok, err := myredis.TakeJSON(ctx, s.kv, tokenKey(token), &share)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorx.ErrTokenInvalid
	}

	// 反向索引仍指向本配对码时才删除
	var bound model.SessionShareToken
	if found, err := myredis.GetJSON(ctx, s.kv, sessionKey(share.SessionId), &bound); err == nil && found && bound.Token == token {
		if err := s.kv.Delete(ctx, sessionKey(share.SessionId)); err != nil {
			zap.L().Warn("删除配对码反向索引失败", zap.String("session_id", share.SessionId), zap.Error(err))
		}
	}

	session, err := s.sessions.FindById(ctx, share.SessionId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.ErrSessionNotExist
		}
		return nil, err
	}
	return session, nil
}

// Cancel 取消会话的配对码，返回之前是否存在
func (s *Service) Cancel(ctx context.Context, sessionId string) (bool, error) {
	var bound model.SessionShareToken
	ok, err := myredis.TakeJSON(ctx, s.kv, sessionKey(sessionId), &bound)
	if err != nil || !ok {
		return false, err
	}
	if err := s.kv.Delete(ctx, tokenKey(bound.Token)); err != nil {
		return true, err
	}
	return true, nil
}
