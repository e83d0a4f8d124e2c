// Package aegmiddleware 提供网关的 gin 中间件：鉴权与速率限制。
package aegmiddleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	entryIdleTTL    = 15 * time.Minute
	entryCleanupGap = 10 * time.Minute
)

// RateLimiter 管理全局、按 IP 和按数据源的速率限制。
// 每个 IP / 数据源的限制器存放在 go-cache 中，空闲 15 分钟后自动清理。
type RateLimiter struct {
	global *rate.Limiter

	perIP   *cache.Cache
	ipRate  rate.Limit
	ipBurst int
	perDS   *cache.Cache
	dsRate  rate.Limit
	dsBurst int
}

// NewRateLimiter 创建速率限制器。perSecond <= 0 表示该层不限制。
func NewRateLimiter(globalPerSecond float64, globalBurst int, ipPerSecond float64, ipBurst int) *RateLimiter {
	rl := &RateLimiter{
		global:  rate.NewLimiter(toLimit(globalPerSecond), globalBurst),
		perIP:   cache.New(entryIdleTTL, entryCleanupGap),
		ipRate:  toLimit(ipPerSecond),
		ipBurst: ipBurst,
		perDS:   cache.New(entryIdleTTL, entryCleanupGap),
		dsRate:  toLimit(ipPerSecond),
		dsBurst: ipBurst,
	}
	slog.Info("[Rate Limiter] 初始化完成",
		"global_rate", globalPerSecond, "global_burst", globalBurst,
		"ip_rate", ipPerSecond, "ip_burst", ipBurst)
	return rl
}

func toLimit(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

// limiterFor 返回 key 对应的限制器，不存在时创建；每次访问都会续期
func (rl *RateLimiter) limiterFor(c *cache.Cache, key string, r rate.Limit, b int) *rate.Limiter {
	if v, ok := c.Get(key); ok {
		l := v.(*rate.Limiter)
		c.SetDefault(key, l)
		return l
	}
	l := rate.NewLimiter(r, b)
	// 并发创建时以先写入者为准
	if err := c.Add(key, l, cache.DefaultExpiration); err != nil {
		if v, ok := c.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// Global 返回全局限制中间件
func (rl *RateLimiter) Global() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.global.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "系统繁忙，请稍后再试 (global limit)"})
			return
		}
		c.Next()
	}
}

// PerIP 返回IP限制中间件
func (rl *RateLimiter) PerIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(rl.perIP, c.ClientIP(), rl.ipRate, rl.ipBurst).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "您的请求过于频繁，请稍后再试 (per-ip limit)"})
			return
		}
		c.Next()
	}
}

// PerDataSource 按路由参数 :uid 限制单个数据源的请求速率
func (rl *RateLimiter) PerDataSource() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.Param("uid")
		if uid == "" {
			c.Next()
			return
		}
		if !rl.limiterFor(rl.perDS, uid, rl.dsRate, rl.dsBurst).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "此数据源请求过于频繁，请稍后再试 (per-datasource limit)"})
			return
		}
		c.Next()
	}
}

// TrackedIPs 返回当前跟踪的 IP 数量
func (rl *RateLimiter) TrackedIPs() int { return rl.perIP.ItemCount() }
