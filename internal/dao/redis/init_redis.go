// Package redis 本文件负责 Redis 连接初始化
package redis

import (
	"context"
	"strconv"
	"time"

	"just_sending_server/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyPrefix 本服务所有 Redis 键的前缀
const KeyPrefix = "js:"

// Init 根据配置创建 Redis 客户端并验证连通性
func Init(conf *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         conf.Host + ":" + strconv.Itoa(conf.Port),
		Password:     conf.Password,
		DB:           conf.Db,
		PoolSize:     50,
		MinIdleConns: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	zap.L().Info("redis connected", zap.String("addr", client.Options().Addr), zap.Int("db", conf.Db))
	return NewRedisCache(client, KeyPrefix), nil
}

// Close 关闭底层连接
func (r *RedisCache) Close() error {
	return r.client.Close()
}
