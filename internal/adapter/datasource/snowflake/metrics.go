// file: internal/adapter/datasource/snowflake/metrics.go
package snowflake

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 查询来源标签值
const (
	sourceCache    = "cache"
	sourceDatabase = "database"
)

// QueriesTotal 按查询类型与结果来源统计执行的查询数
var QueriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "snowaegis",
		Name:      "queries_total",
		Help:      "执行的查询总数",
	},
	[]string{"query_type", "query_source"},
)

var instanceLabels = []string{"uid", "name"}

// Collector 在采集时读取所有实例的连接池统计与缓存大小
type Collector struct {
	manager *Manager

	inUse        *prometheus.Desc
	idle         *prometheus.Desc
	open         *prometheus.Desc
	maxOpen      *prometheus.Desc
	idleClosed   *prometheus.Desc
	idleTimeout  *prometheus.Desc
	waitCount    *prometheus.Desc
	waitDuration *prometheus.Desc
	cacheEntries *prometheus.Desc
}

// NewCollector 为实例管理器创建指标采集器
func NewCollector(m *Manager) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("snowaegis_"+name, help, instanceLabels, nil)
	}
	return &Collector{
		manager:      m,
		inUse:        desc("sql_pool_in_use_connections", "连接池 - 正在使用的连接数"),
		idle:         desc("sql_pool_idle_connections", "连接池 - 空闲连接数"),
		open:         desc("sql_pool_open_connections", "连接池 - 当前打开的连接数"),
		maxOpen:      desc("sql_pool_max_connections", "连接池 - 最大连接数"),
		idleClosed:   desc("sql_pool_idle_closed_total", "连接池 - 因 MaxIdleConns 关闭的连接总数"),
		idleTimeout:  desc("sql_pool_idle_timeout_closed_total", "连接池 - 因空闲超时关闭的连接总数"),
		waitCount:    desc("sql_pool_wait_count_total", "连接池 - 等待连接的总次数"),
		waitDuration: desc("sql_pool_wait_duration_seconds_total", "连接池 - 等待连接的总耗时"),
		cacheEntries: desc("cache_entries", "结果缓存 - 当前条目数"),
	}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inUse
	ch <- c.idle
	ch <- c.open
	ch <- c.maxOpen
	ch <- c.idleClosed
	ch <- c.idleTimeout
	ch <- c.waitCount
	ch <- c.waitDuration
	ch <- c.cacheEntries
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, inst := range c.manager.Instances() {
		s := inst.db.Stats()
		labels := []string{inst.uid, inst.name}
		ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(s.InUse), labels...)
		ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle), labels...)
		ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(s.OpenConnections), labels...)
		ch <- prometheus.MustNewConstMetric(c.maxOpen, prometheus.GaugeValue, float64(s.MaxOpenConnections), labels...)
		ch <- prometheus.MustNewConstMetric(c.idleClosed, prometheus.CounterValue, float64(s.MaxIdleClosed), labels...)
		ch <- prometheus.MustNewConstMetric(c.idleTimeout, prometheus.CounterValue, float64(s.MaxIdleTimeClosed), labels...)
		ch <- prometheus.MustNewConstMetric(c.waitCount, prometheus.CounterValue, float64(s.WaitCount), labels...)
		ch <- prometheus.MustNewConstMetric(c.waitDuration, prometheus.CounterValue, s.WaitDuration.Seconds(), labels...)
		entries := 0
		if inst.cache != nil {
			entries = inst.cache.Len()
		}
		ch <- prometheus.MustNewConstMetric(c.cacheEntries, prometheus.GaugeValue, float64(entries), labels...)
	}
}

// RegisterMetrics 注册查询计数器和实例采集器，插件 main 调用一次
func RegisterMetrics(reg prometheus.Registerer, m *Manager) error {
	if err := reg.Register(QueriesTotal); err != nil {
		return err
	}
	return reg.Register(NewCollector(m))
}
