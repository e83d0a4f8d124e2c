// Package aegobserve 暴露 Prometheus 指标
package aegobserve

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	TotalReq = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snowaegis_requests_total",
		Help: "请求总数",
	})
	FailReq = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snowaegis_requests_failed",
		Help: "请求失败数 (状态码 >= 500)",
	})
	// VariableSearches 统计变量搜索次数，result 为 ok / error
	VariableSearches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snowaegis_variable_searches_total",
		Help: "变量候选值搜索次数",
	}, []string{"result"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snowaegis_http_request_duration_seconds",
		Help:    "HTTP 请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "code"})
)

// Register 必须在 main 调用一次
func Register() {
	prometheus.MustRegister(TotalReq, FailReq, VariableSearches, httpRequestDuration)
}

// Handler 返回 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }

// PrometheusMiddleware 记录每个请求的耗时与结果，path 使用路由模板避免高基数
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := c.Writer.Status()
		httpRequestDuration.WithLabelValues(path, c.Request.Method, strconv.Itoa(code)).
			Observe(time.Since(start).Seconds())
		TotalReq.Inc()
		if code >= http.StatusInternalServerError {
			FailReq.Inc()
		}
	}
}
