package repository

import (
	"context"

	"just_sending_server/internal/model"

	"gorm.io/gorm"
)

type publicKeyRepository struct {
	db *gorm.DB
}

// NewPublicKeyRepository 创建公钥 Repository
func NewPublicKeyRepository(db *gorm.DB) PublicKeyRepository {
	return &publicKeyRepository{db: db}
}

func (r *publicKeyRepository) Create(ctx context.Context, key *model.PublicKey) error {
	if err := r.db.WithContext(ctx).Create(key).Error; err != nil {
		return wrapDBErrorf(err, "保存公钥 session_id=%s alias=%s", key.SessionId, key.Alias)
	}
	return nil
}

func (r *publicKeyRepository) FindById(ctx context.Context, id string) (*model.PublicKey, error) {
	var key model.PublicKey
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&key).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询公钥 id=%s", id)
	}
	return &key, nil
}

func (r *publicKeyRepository) DeleteBySessionId(ctx context.Context, sessionId string) error {
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionId).Delete(&model.PublicKey{}).Error; err != nil {
		return wrapDBErrorf(err, "删除公钥 session_id=%s", sessionId)
	}
	return nil
}
