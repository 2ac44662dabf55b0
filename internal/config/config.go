// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找，并允许环境变量覆盖部分字段
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName string `toml:"appName"` // 应用名称
	Host    string `toml:"host"`    // 监听地址，如 "0.0.0.0"
	Port    int    `toml:"port"`    // 监听端口，默认 8080
	Mode    string `toml:"mode"`    // 运行模式：dev 或 release
	Locale  string `toml:"locale"`  // 参数校验提示语言：en 或 zh
}

// MysqlConfig 关系型存储配置
// Driver 为 "mysql" 时使用 MySQL，为 "sqlite" 时使用数据目录下的嵌入式数据库
type MysqlConfig struct {
	Driver       string `toml:"driver"`       // mysql 或 sqlite
	Host         string `toml:"host"`         // MySQL 服务器地址
	Port         int    `toml:"port"`         // MySQL 端口，默认 3306
	User         string `toml:"user"`         // 数据库用户名
	Password     string `toml:"password"`     // 数据库密码
	DatabaseName string `toml:"databaseName"` // 数据库名称
	SqliteFile   string `toml:"sqliteFile"`   // sqlite 文件名，相对数据目录
}

// RedisConfig Redis 连接配置
// 未启用时 KV 数据落在关系库的 kv_entry 表中
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
	Db       int    `toml:"db"`
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// AppConfig 业务配置
type AppConfig struct {
	DataDir            string `toml:"dataDir"`            // 数据目录
	UploadDir          string `toml:"uploadDir"`          // 上传目录，为空时使用 <dataDir>/upload
	MaxUploadSizeBytes int64  `toml:"maxUploadSizeBytes"` // 单个上传文件上限
	SessionTtlHours    int    `toml:"sessionTtlHours"`    // 会话存活小时数
	StatsCacheMinutes  int    `toml:"statsCacheMinutes"`  // 统计缓存分钟数
}

// SecurityConfig 安全相关配置
type SecurityConfig struct {
	SSLRedirect       bool    `toml:"sslRedirect"`       // 是否将 HTTP 重定向到 HTTPS
	SSLHost           string  `toml:"sslHost"`           // 重定向目标主机
	PinRateLimitRps   float64 `toml:"pinRateLimitRps"`   // 配对码兑换每秒令牌数（按 IP）
	PinRateLimitBurst int     `toml:"pinRateLimitBurst"` // 配对码兑换突发上限
}

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"` // 节点 ID，范围 0-1023
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig      `toml:"mainConfig"`
	MysqlConfig     `toml:"mysqlConfig"`
	RedisConfig     `toml:"redisConfig"`
	LogConfig       `toml:"logConfig"`
	AppConfig       `toml:"appConfig"`
	SecurityConfig  `toml:"securityConfig"`
	SnowflakeConfig `toml:"snowflakeConfig"`
}

// config 全局配置单例，延迟加载
var config *Config

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		MainConfig:  MainConfig{AppName: "just_sending_server", Host: "0.0.0.0", Port: 8080, Mode: "dev", Locale: "en"},
		MysqlConfig: MysqlConfig{Driver: "sqlite", Port: 3306, SqliteFile: "Data.sqlite"},
		RedisConfig: RedisConfig{Host: "127.0.0.1", Port: 6379},
		LogConfig:   LogConfig{LogPath: "logs", Level: "info"},
		AppConfig: AppConfig{
			DataDir:            "App_Data",
			MaxUploadSizeBytes: 83886080,
			SessionTtlHours:    24,
			StatsCacheMinutes:  60,
		},
		SecurityConfig:  SecurityConfig{PinRateLimitRps: 1, PinRateLimitBurst: 10},
		SnowflakeConfig: SnowflakeConfig{MachineID: 1},
	}
}

// LoadConfig 从多个候选路径加载配置文件
// 找到第一个可用的配置文件即停止，随后应用 .env 与环境变量覆盖
func LoadConfig(cfg *Config) error {
	paths := []string{
		"configs/config_local.toml",
		"configs/config.toml",
		"../../configs/config_local.toml",
		"../../configs/config.toml",
	}

	var loadErr = fmt.Errorf("could not find configuration file in any of the search paths")
	for _, path := range paths {
		if _, err := toml.DecodeFile(path, cfg); err == nil {
			loadErr = nil
			break
		}
	}

	// .env 不存在属于正常情况
	_ = godotenv.Load()
	ApplyEnv(cfg)
	return loadErr
}

// ApplyEnv 使用环境变量覆盖配置
func ApplyEnv(cfg *Config) {
	if v, ok := lookupInt("PORT"); ok {
		cfg.MainConfig.Port = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.AppConfig.DataDir = v
	}
	if v, ok := lookupInt64("MAX_UPLOAD_SIZE_BYTES"); ok {
		cfg.AppConfig.MaxUploadSizeBytes = v
	}
	if v, ok := lookupInt("SESSION_TTL_HOURS"); ok {
		cfg.AppConfig.SessionTtlHours = v
	}
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RedisConfig.Enabled = b
		}
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.MysqlConfig.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogConfig.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOCALE"); v != "" {
		cfg.MainConfig.Locale = strings.ToLower(v)
	}
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件
func GetConfig() *Config {
	if config == nil {
		config = Default()
		_ = LoadConfig(config) // 找不到文件时使用默认值
	}
	return config
}

// SessionTTL 会话存活时间
func (c *AppConfig) SessionTTL() time.Duration {
	if c.SessionTtlHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.SessionTtlHours) * time.Hour
}

// StatsCacheTTL 统计缓存时间
func (c *AppConfig) StatsCacheTTL() time.Duration {
	if c.StatsCacheMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.StatsCacheMinutes) * time.Minute
}

// UploadRoot 上传根目录
func (c *AppConfig) UploadRoot() string {
	if c.UploadDir != "" {
		return c.UploadDir
	}
	return filepath.Join(c.DataDir, "upload")
}

// SqlitePath sqlite 数据库文件路径
func (c *Config) SqlitePath() string {
	return filepath.Join(c.AppConfig.DataDir, c.MysqlConfig.SqliteFile)
}

func lookupInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func lookupInt64(key string) (int64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}
