package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"just_sending_server/internal/config"
	dao "just_sending_server/internal/dao/mysql"
	"just_sending_server/internal/dao/mysql/repository"
	myredis "just_sending_server/internal/dao/redis"
	"just_sending_server/internal/handler"
	"just_sending_server/internal/https_server"
	"just_sending_server/internal/infrastructure/logger"
	"just_sending_server/internal/infrastructure/storage"
	"just_sending_server/internal/service"
	"just_sending_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

// kv_entry 过期数据清理间隔
const purgeInterval = 10 * time.Minute

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()
	zap.L().Info("日志初始化成功")

	// 3. 初始化 ID 生成器
	snowflake.Init(conf.SnowflakeConfig.MachineID)

	// 4. 初始化数据库
	db, err := dao.Init(conf)
	if err != nil {
		zap.L().Fatal("数据库初始化失败", zap.Error(err))
	}
	repos := repository.NewRepositories(db)
	zap.L().Info("数据库初始化成功")

	// 5. KV：启用 Redis 时用 Redis，否则落在关系库
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var kv myredis.CacheService
	if conf.RedisConfig.Enabled {
		rdb, err := myredis.Init(&conf.RedisConfig)
		if err != nil {
			zap.L().Fatal("Redis 初始化失败", zap.Error(err))
		}
		defer rdb.Close()
		kv = rdb
		zap.L().Info("Redis 初始化成功")
	} else {
		dbKv := repository.NewKvRepository(db)
		go purgeExpired(ctx, dbKv)
		kv = dbKv
		zap.L().Info("使用数据库存储 KV")
	}

	// 6. 初始化 Service 层 (依赖注入)
	uploads := storage.NewUploadStore(nil, conf.AppConfig.UploadRoot())
	svc := service.NewServices(repos, kv, uploads, &conf.AppConfig)
	defer svc.Close()
	if err := svc.RestoreExpirations(ctx); err != nil {
		zap.L().Error("恢复会话到期任务失败", zap.Error(err))
	}
	zap.L().Info("Service 层初始化成功")

	// 7. 初始化 HTTP 服务器
	if err := handler.InitTrans(conf.MainConfig.Locale); err != nil {
		zap.L().Fatal("初始化翻译器失败", zap.Error(err))
	}
	engine := https_server.Init(conf, handler.NewHandlers(svc, conf.AppConfig.MaxUploadSizeBytes))
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler: engine,
	}

	go func() {
		zap.L().Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 设置信号监听
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("关闭服务器...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("服务器关闭超时", zap.Error(err))
	}
	zap.L().Info("服务器已关闭")
}

// purgeExpired 定期删除 kv_entry 中已过期的记录
func purgeExpired(ctx context.Context, kv *repository.KvRepository) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := kv.PurgeExpired(ctx)
			if err != nil {
				zap.L().Warn("清理过期 KV 失败", zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Debug("已清理过期 KV", zap.Int64("count", n))
			}
		}
	}
}
