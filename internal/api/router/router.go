package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"acadcore/cbcs/config"
	"acadcore/cbcs/internal/api/handler"
	"acadcore/cbcs/internal/api/middleware"
	"acadcore/cbcs/pkg/jwt"
	"acadcore/cbcs/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时 Token 黑名单与提交限流均降级
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// nil 指针不能直接装进接口，否则接口非 nil
	var (
		blacklist middleware.TokenBlacklist
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, blacklist, logger))
	{
		cycles := v1.Group("/cycles")
		{
			cycles.POST("", middleware.RoleAuth("admin"), h.Cycle.CreateCycle)
			cycles.GET("/:id", h.Cycle.GetCycle)
			cycles.GET("/:id/progress", middleware.RoleAuth("admin", "staff"), h.Cycle.GetProgress)
			cycles.POST("/:id/submit",
				middleware.RoleAuth("student"),
				middleware.SubmitRateLimit(limiter, cfg.RateLimit.SubmitLimit, cfg.RateLimit.SubmitWindow, logger),
				h.Cycle.SubmitPreferences,
			)
			cycles.GET("/:id/choices/me", middleware.RoleAuth("student"), h.Cycle.GetMyChoices)
			cycles.POST("/:id/finalize", middleware.RoleAuth("admin"), h.Cycle.Finalize)
		}
	}

	return r
}
