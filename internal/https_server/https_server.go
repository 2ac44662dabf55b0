// Package https_server 提供 HTTP/HTTPS 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件和路由
package https_server

import (
	"just_sending_server/internal/config"                    // 配置管理
	"just_sending_server/internal/handler"                   // Handler 聚合对象
	"just_sending_server/internal/infrastructure/logger"     // 自定义日志中间件
	"just_sending_server/internal/infrastructure/middleware" // 安全头、限流、指标
	"just_sending_server/internal/router"                    // 路由注册

	"github.com/gin-contrib/cors"                             // CORS 跨域中间件
	"github.com/gin-gonic/gin"                                // Gin Web 框架
	"github.com/prometheus/client_golang/prometheus/promhttp" // /metrics
)

// Init 初始化 HTTP 服务器并返回 Gin 引擎实例
// 配置顺序：
//  1. 创建 Gin 引擎（空白，不含默认中间件）
//  2. 注册日志和恢复中间件
//  3. 配置 CORS 跨域规则与安全响应头
//  4. 请求指标与 /metrics
//  5. 注册业务路由，配对码兑换单独限流
func Init(conf *config.Config, handlers *handler.Handlers) *gin.Engine {
	if conf.MainConfig.Mode != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))

	// 会话 ID 本身就是凭证，允许任意来源
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	engine.Use(cors.New(corsConfig))
	engine.Use(middleware.Security(&conf.SecurityConfig, conf.MainConfig.Mode == "dev"))

	engine.Use(middleware.Metrics())
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pinLimiter := middleware.NewRateLimiter(
		conf.SecurityConfig.PinRateLimitRps,
		conf.SecurityConfig.PinRateLimitBurst,
		middleware.KeyByIP(),
	)
	rt := router.NewRouter(handlers, pinLimiter.Handler())
	rt.RegisterRoutes(engine)

	return engine
}
