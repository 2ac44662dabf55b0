// Package redis 定义 KV 存储接口及其 Redis 实现
// Service 层只依赖 CacheService 接口，关系库的 kv_entry 表也实现了同一接口
package redis

import (
	"context"
	"encoding/json"
	"time"

	"just_sending_server/pkg/errorx"
)

// CacheService KV 存储接口
// 值统一为字符串，结构化数据通过 GetJSON / SetJSON 序列化
type CacheService interface {
	// Get 获取键对应的值（键不存在返回空字符串和 nil）
	Get(ctx context.Context, key string) (string, error)
	// Set 设置键值对，ttl 为 0 表示不过期
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// SetNX 仅在键不存在时写入，返回是否写入成功
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	// Take 原子地读取并删除键，键不存在返回空字符串和 nil
	Take(ctx context.Context, key string) (string, error)
	// Exists 判断键是否存在
	Exists(ctx context.Context, key string) (bool, error)
	// Delete 删除键（如果存在）
	Delete(ctx context.Context, key string) error
}

// GetJSON 读取并反序列化，键不存在时返回 false
func GetJSON(ctx context.Context, kv CacheService, key string, out any) (bool, error) {
	raw, err := kv.Get(ctx, key)
	if err != nil || raw == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, errorx.Wrapf(err, errorx.CodeCacheError, "decode kv value %s", key)
	}
	return true, nil
}

// SetJSON 序列化后写入
func SetJSON(ctx context.Context, kv CacheService, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "encode kv value %s", key)
	}
	return kv.Set(ctx, key, string(b), ttl)
}

// SetNXJSON 序列化后仅在键不存在时写入
func SetNXJSON(ctx context.Context, kv CacheService, key string, value any, ttl time.Duration) (bool, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return false, errorx.Wrapf(err, errorx.CodeCacheError, "encode kv value %s", key)
	}
	return kv.SetNX(ctx, key, string(b), ttl)
}

// TakeJSON 原子读取并删除，键不存在时返回 false
func TakeJSON(ctx context.Context, kv CacheService, key string, out any) (bool, error) {
	raw, err := kv.Take(ctx, key)
	if err != nil || raw == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, errorx.Wrapf(err, errorx.CodeCacheError, "decode kv value %s", key)
	}
	return true, nil
}
