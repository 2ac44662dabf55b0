// Package repository 本文件实现 SessionRepository 接口
package repository

import (
	"context"

	"just_sending_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建 SessionRepository 实例
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// FindById 根据 ID 查找会话
func (r *sessionRepository) FindById(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 id=%s", id)
	}
	return &session, nil
}

// FindAll 查找全部会话
func (r *sessionRepository) FindAll(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.WithContext(ctx).Order("date_created ASC").Find(&sessions).Error; err != nil {
		return nil, wrapDBError(err, "查询会话列表")
	}
	return sessions, nil
}

// Create 不存在时插入
// 并发创建同一个 ID 时只有一个调用返回 true
func (r *sessionRepository) Create(ctx context.Context, session *model.Session) (bool, error) {
	if session.ConnectionIdsJson == "" {
		session.SetConnectionIds(nil)
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(session)
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "创建会话 id=%s", session.Id)
	}
	return res.RowsAffected == 1, nil
}

// UpdateConnectionIds 覆盖连接 ID 列表
// 会话已被删除时不会重新插入
func (r *sessionRepository) UpdateConnectionIds(ctx context.Context, id string, ids []string) error {
	err := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ?", id).
		Update("connection_ids_json", model.EncodeConnectionIds(ids)).Error
	if err != nil {
		return wrapDBErrorf(err, "更新会话连接 id=%s", id)
	}
	return nil
}

// Delete 删除会话
func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Session{}).Error; err != nil {
		return wrapDBErrorf(err, "删除会话 id=%s", id)
	}
	return nil
}
