// file: internal/aegobserve/metrics_test.go

package aegobserve

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withIsolatedRegistry 在测试期间把默认注册表替换为全新的注册表
func withIsolatedRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	prevReg, prevGat := prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	prometheus.DefaultRegisterer, prometheus.DefaultGatherer = reg, reg
	t.Cleanup(func() {
		prometheus.DefaultRegisterer, prometheus.DefaultGatherer = prevReg, prevGat
	})
	Register()
	httpRequestDuration.Reset()
	VariableSearches.Reset()
	return reg
}

// histogramCount 返回指定 label 组合下的样本数，找不到时返回 0
func histogramCount(t *testing.T, reg *prometheus.Registry, path, method, code string) uint64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "snowaegis_http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabels(m, map[string]string{"path": path, "method": method, "code": code}) {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	if len(m.GetLabel()) != len(want) {
		return false
	}
	for _, l := range m.GetLabel() {
		if want[l.GetName()] != l.GetValue() {
			return false
		}
	}
	return true
}

func newInstrumentedEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.GET("/datasources/:uid", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/datasources/:uid/query", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	return r
}

func TestPrometheusMiddleware_UsesRouteTemplate(t *testing.T) {
	reg := withIsolatedRegistry(t)
	r := newInstrumentedEngine()

	for _, uid := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/datasources/"+uid, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, uint64(3), histogramCount(t, reg, "/datasources/:uid", "GET", "200"))
	assert.Equal(t, uint64(1), histogramCount(t, reg, "unmatched", "GET", "404"))
	assert.Equal(t, 2, testutil.CollectAndCount(httpRequestDuration), "uid 不应成为 label")
}

func TestPrometheusMiddleware_CountsServerErrors(t *testing.T) {
	withIsolatedRegistry(t)
	r := newInstrumentedEngine()

	failBefore := testutil.ToFloat64(FailReq)
	totalBefore := testutil.ToFloat64(TotalReq)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/datasources/a/query", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/datasources/a", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(FailReq)-failBefore, "只有 5xx 计为失败")
	assert.Equal(t, float64(3), testutil.ToFloat64(TotalReq)-totalBefore)
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	withIsolatedRegistry(t)
	VariableSearches.WithLabelValues("ok").Inc()
	httpRequestDuration.WithLabelValues("/healthz", "GET", "200").Observe(0)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "snowaegis_http_request_duration_seconds")
	assert.Contains(t, body, `snowaegis_variable_searches_total{result="ok"}`)
	assert.Contains(t, body, "snowaegis_requests_total")
}
