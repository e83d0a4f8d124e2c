// file: internal/transport/http/router/router.go
package router

import (
	"SnowAegis/internal/aegmiddleware"
	"SnowAegis/internal/aegobserve"
	"SnowAegis/internal/core/port"
	"SnowAegis/internal/service"
	"SnowAegis/internal/transport/http/middleware"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Dependencies 结构体用于将所有依赖项注入到路由器中
type Dependencies struct {
	Store         port.SettingsStore
	Executor      port.QueryExecutor
	HealthChecker port.HealthChecker
	Expander      port.TemplateExpander
	// Limiter 为 nil 时不做速率限制
	Limiter *aegmiddleware.RateLimiter
	// Auth 为 nil 时不启用鉴权
	Auth *service.Authenticator
	// MetricsHandler 为 nil 时不暴露 /metrics
	MetricsHandler http.Handler
}

// New 创建并配置一个基于 Gin 的 HTTP 路由器 (V1 版本)
func New(deps Dependencies) http.Handler {
	router := gin.New()

	// --- 配置全局中间件 ---
	router.Use(gin.Recovery())
	router.Use(aegobserve.PrometheusMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.ErrorHandlingMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	h := &handlers{deps: deps}
	authEnabled := deps.Auth != nil

	v1 := router.Group("/api/v1")
	if deps.Limiter != nil {
		v1.Use(deps.Limiter.Global(), deps.Limiter.PerIP())
	}
	v1.Use(aegmiddleware.Authenticate(deps.Auth))
	{
		dsGroup := v1.Group("/datasources")
		{
			// --- 控制平面 (Control Plane)：需要管理员权限 ---
			dsGroup.POST("", aegmiddleware.RequireAdmin(authEnabled), h.createDataSource)
			dsGroup.DELETE("/:uid", aegmiddleware.RequireAdmin(authEnabled), h.deleteDataSource)
			dsGroup.POST("/:uid/edits", aegmiddleware.RequireAdmin(authEnabled), h.applyEdits)
			dsGroup.POST("/:uid/secrets/:field/reset", aegmiddleware.RequireAdmin(authEnabled), h.resetSecret)

			// --- 元数据平面 ---
			dsGroup.GET("", h.listDataSources)
			dsGroup.GET("/:uid", h.getDataSource)

			// --- 数据平面 (Data Plane) ---
			data := dsGroup.Group("/:uid")
			if deps.Limiter != nil {
				data.Use(deps.Limiter.PerDataSource())
			}
			data.POST("/query", h.query)
			data.POST("/search", h.search)
			data.GET("/health", h.health)
		}
	}

	return router
}
