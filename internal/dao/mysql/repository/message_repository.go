package repository

import (
	"context"

	"just_sending_server/internal/model"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 插入消息
func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return wrapDBErrorf(err, "创建消息 session_id=%s", message.SessionId)
	}
	return nil
}

// FindById 根据 ID 查找消息
func (r *messageRepository) FindById(ctx context.Context, id string) (*model.Message, error) {
	var message model.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 id=%s", id)
	}
	return &message, nil
}

// FindBySessionSince 增量拉取，最新的在前
func (r *messageRepository) FindBySessionSince(ctx context.Context, sessionId string, from int64) ([]model.Message, error) {
	messages := make([]model.Message, 0)
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND date_sent_epoch > ?", sessionId, from).
		Order("date_sent_epoch DESC").Order("id DESC").
		Find(&messages).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询消息 session_id=%s from=%d", sessionId, from)
	}
	return messages, nil
}

// DeleteBySessionId 删除会话下所有消息
func (r *messageRepository) DeleteBySessionId(ctx context.Context, sessionId string) error {
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionId).Delete(&model.Message{}).Error; err != nil {
		return wrapDBErrorf(err, "删除消息 session_id=%s", sessionId)
	}
	return nil
}
