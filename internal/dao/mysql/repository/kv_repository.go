package repository

import (
	"context"
	"errors"
	"time"

	"just_sending_server/internal/model"
	"just_sending_server/pkg/errorx"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KvRepository 基于 kv_entry 表的 KV 存储
// 未启用 Redis 时替代 RedisCache，方法集与 redis.CacheService 一致
type KvRepository struct {
	db *gorm.DB
}

// NewKvRepository 创建 KV Repository
func NewKvRepository(db *gorm.DB) *KvRepository {
	return &KvRepository{db: db}
}

func expiresAt(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().UTC().Add(ttl)
	return &t
}

// alive 过滤已过期的键
func (r *KvRepository) alive(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC())
}

// Get 获取键对应的值（键不存在或已过期返回空字符串和 nil）
func (r *KvRepository) Get(ctx context.Context, key string) (string, error) {
	var entry model.KvEntry
	err := r.alive(ctx).Where("kv_key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", errorx.Wrapf(err, errorx.CodeCacheError, "kv get key %s", key)
	}
	return entry.Value, nil
}

// Set 写入或覆盖
func (r *KvRepository) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	entry := model.KvEntry{Key: key, Value: value, ExpiresAt: expiresAt(ttl)}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"kv_value", "expires_at"}),
	}).Create(&entry).Error
	if err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "kv set key %s", key)
	}
	return nil
}

// SetNX 仅在键不存在时写入
// 先清掉同名的过期键，再依赖主键冲突保证只有一个写入者成功
func (r *KvRepository) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	db := r.db.WithContext(ctx)
	if err := db.Where("kv_key = ? AND expires_at IS NOT NULL AND expires_at <= ?", key, time.Now().UTC()).
		Delete(&model.KvEntry{}).Error; err != nil {
		return false, errorx.Wrapf(err, errorx.CodeCacheError, "kv purge key %s", key)
	}
	entry := model.KvEntry{Key: key, Value: value, ExpiresAt: expiresAt(ttl)}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if res.Error != nil {
		return false, errorx.Wrapf(res.Error, errorx.CodeCacheError, "kv setnx key %s", key)
	}
	return res.RowsAffected == 1, nil
}

// Take 读取并删除
// 删除语句带上读到的值，并发 Take 时只有删除成功的一方拿到值
func (r *KvRepository) Take(ctx context.Context, key string) (string, error) {
	value, err := r.Get(ctx, key)
	if err != nil || value == "" {
		return "", err
	}
	res := r.db.WithContext(ctx).Where("kv_key = ? AND kv_value = ?", key, value).Delete(&model.KvEntry{})
	if res.Error != nil {
		return "", errorx.Wrapf(res.Error, errorx.CodeCacheError, "kv take key %s", key)
	}
	if res.RowsAffected == 0 {
		return "", nil
	}
	return value, nil
}

// Exists 判断键是否存在
func (r *KvRepository) Exists(ctx context.Context, key string) (bool, error) {
	var count int64
	if err := r.alive(ctx).Model(&model.KvEntry{}).Where("kv_key = ?", key).Count(&count).Error; err != nil {
		return false, errorx.Wrapf(err, errorx.CodeCacheError, "kv exists key %s", key)
	}
	return count > 0, nil
}

// Delete 删除键（如果存在）
func (r *KvRepository) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where("kv_key = ?", key).Delete(&model.KvEntry{}).Error; err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "kv delete key %s", key)
	}
	return nil
}

// PurgeExpired 清理所有过期键，返回清理数量
func (r *KvRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now().UTC()).
		Delete(&model.KvEntry{})
	if res.Error != nil {
		return 0, errorx.Wrap(res.Error, errorx.CodeCacheError, "kv purge expired")
	}
	return res.RowsAffected, nil
}
