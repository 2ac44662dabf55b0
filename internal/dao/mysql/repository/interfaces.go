// Package repository 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
// 所有 Repository 接口在此文件定义，具体实现在各自的文件中
package repository

import (
	"context"

	"just_sending_server/internal/model"

	"gorm.io/gorm"
)

// SessionRepository 会话数据访问接口
type SessionRepository interface {
	// FindById 根据 ID 查找会话，不存在返回 CodeNotFound
	FindById(ctx context.Context, id string) (*model.Session, error)
	// FindAll 查找全部会话（启动时恢复 TTL 使用）
	FindAll(ctx context.Context) ([]model.Session, error)
	// Create 不存在时插入，返回是否插入
	Create(ctx context.Context, session *model.Session) (bool, error)
	// UpdateConnectionIds 整体覆盖连接 ID 列表
	// 不加行锁，同一会话并发加入 / 离开时后写覆盖先写
	UpdateConnectionIds(ctx context.Context, id string, ids []string) error
	// Delete 删除会话，不存在时不报错
	Delete(ctx context.Context, id string) error
}

// MessageRepository 消息数据访问接口
type MessageRepository interface {
	// Create 插入消息
	Create(ctx context.Context, message *model.Message) error
	// FindById 根据 ID 查找消息
	FindById(ctx context.Context, id string) (*model.Message, error)
	// FindBySessionSince 查找 date_sent_epoch > from 的消息，按时间倒序
	FindBySessionSince(ctx context.Context, sessionId string, from int64) ([]model.Message, error)
	// DeleteBySessionId 删除会话下所有消息
	DeleteBySessionId(ctx context.Context, sessionId string) error
}

// PublicKeyRepository 公钥数据访问接口
type PublicKeyRepository interface {
	// Create 插入公钥
	Create(ctx context.Context, key *model.PublicKey) error
	// FindById 根据 ID 查找公钥
	FindById(ctx context.Context, id string) (*model.PublicKey, error)
	// DeleteBySessionId 删除会话下所有公钥
	DeleteBySessionId(ctx context.Context, sessionId string) error
}

// StatsRepository 统计数据访问接口
type StatsRepository interface {
	// FindById 根据桶 ID 查找统计
	FindById(ctx context.Context, id int64) (*model.Stats, error)
	// SaveWithVersion 乐观锁写入，stats.Version 为写入后的版本
	// 返回 false 表示版本冲突，写入未生效
	SaveWithVersion(ctx context.Context, stats *model.Stats) (bool, error)
	// FindAllExceptAllTime 查找除全量桶外的所有统计，按 ID 升序
	FindAllExceptAllTime(ctx context.Context) ([]model.Stats, error)
}

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db        *gorm.DB
	Session   SessionRepository
	Message   MessageRepository
	PublicKey PublicKeyRepository
	Stats     StatsRepository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:        db,
		Session:   NewSessionRepository(db),
		Message:   NewMessageRepository(db),
		PublicKey: NewPublicKeyRepository(db),
		Stats:     NewStatsRepository(db),
	}
}

// Transaction 在数据库事务中执行函数
// 事务内只能使用 txRepos，不要在回调里访问事务外的存储
func (r *Repositories) Transaction(ctx context.Context, fn func(txRepos *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
