// Package mysql 提供关系库的初始化
// 负责按配置建立 MySQL 或 SQLite 连接、自动迁移表结构
package mysql

import (
	"fmt"
	"os"
	"path/filepath"

	"just_sending_server/internal/config"
	"just_sending_server/internal/model"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init 初始化数据库连接并迁移表结构
// 执行步骤：
//  1. 按 driver 选择 MySQL 或 SQLite
//  2. 建立连接
//  3. 执行 AutoMigrate
func Init(conf *config.Config) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch conf.MysqlConfig.Driver {
	case "mysql":
		// 格式：user:password@tcp(host:port)/database?params
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			conf.MysqlConfig.User,
			conf.MysqlConfig.Password,
			conf.MysqlConfig.Host,
			conf.MysqlConfig.Port,
			conf.MysqlConfig.DatabaseName,
		)
		db, err = gorm.Open(mysqldriver.Open(dsn), gormConfig(conf.MainConfig.Mode))
	case "sqlite", "":
		if err = os.MkdirAll(conf.AppConfig.DataDir, 0o755); err != nil {
			return nil, err
		}
		db, err = OpenSQLite(conf.SqlitePath())
	default:
		return nil, fmt.Errorf("unknown db driver %q", conf.MysqlConfig.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	zap.L().Info("database ready", zap.String("driver", db.Dialector.Name()))
	return db, nil
}

// OpenSQLite 打开（或创建）SQLite 数据库并设置 PRAGMA
func OpenSQLite(path string) (*gorm.DB, error) {
	// 父目录不存在时提前失败
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig("release"))
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// SQLite 单写者
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// AutoMigrate 迁移所有表
// 如果表不存在则创建，不会删除已有字段或数据
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Session{},   // 会话表
		&model.Message{},   // 消息表
		&model.PublicKey{}, // 公钥表
		&model.Stats{},     // 统计表
		&model.KvEntry{},   // KV 表
	)
}

func gormConfig(mode string) *gorm.Config {
	level := logger.Warn
	if mode != "dev" {
		level = logger.Silent
	}
	return &gorm.Config{Logger: logger.Default.LogMode(level)}
}
