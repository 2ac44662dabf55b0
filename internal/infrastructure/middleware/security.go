package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"just_sending_server/internal/config"
)

// Security 安全响应头，可选 HTTP -> HTTPS 重定向
// 由反向代理终止 TLS 时关闭 SSLRedirect，只保留安全头
func Security(conf *config.SecurityConfig, isDevelopment bool) gin.HandlerFunc {
	// 在返回函数之前初始化，避免每次请求都重复创建对象
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect:        conf.SSLRedirect,
		SSLHost:            conf.SSLHost,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
		IsDevelopment:      isDevelopment,
	})

	return func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			// 不要在中间件里用 Fatal，记录日志并终止当前请求
			zap.L().Warn("安全中间件拦截请求", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.Abort()
			return
		}

		// 重定向时 secure 已经写出响应
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
			return
		}
		c.Next()
	}
}
