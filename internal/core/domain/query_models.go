// Package domain file: internal/core/domain/query_models.go
package domain

import "time"

// 查询类型
const (
	QueryTypeTable      = "table"
	QueryTypeTimeSeries = "time series"
)

// SearchRefID 是变量搜索请求使用的固定 refId
const SearchRefID = "search"

// Query 定义了一个面板查询 (target)
type Query struct {
	RefID       string   `json:"refId"`
	QueryText   string   `json:"queryText"`
	QueryType   string   `json:"queryType,omitempty"`
	TimeColumns []string `json:"timeColumns,omitempty"`
	FillMode    string   `json:"fillMode,omitempty"`
	Hide        bool     `json:"hide,omitempty"`
	// UseCache 为 nil 时沿用数据源的 useCacheByDefault
	UseCache *bool `json:"useCache,omitempty"`
}

// Clone 返回一个不与原查询共享切片/指针的副本
func (q Query) Clone() Query {
	out := q
	if q.TimeColumns != nil {
		out.TimeColumns = append([]string(nil), q.TimeColumns...)
	}
	if q.UseCache != nil {
		v := *q.UseCache
		out.UseCache = &v
	}
	return out
}

// TimeRange 是查询的时间窗口
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IsZero 判断时间窗口是否未设置
func (r TimeRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// QueryRequest 是发往后端执行器的请求
type QueryRequest struct {
	Targets       []Query    `json:"targets"`
	MaxDataPoints int64      `json:"maxDataPoints"`
	IntervalMs    int64      `json:"intervalMs,omitempty"`
	Range         *TimeRange `json:"range,omitempty"`
}

// ResponseError 是后端在响应中携带的错误
type ResponseError struct {
	Message string `json:"message"`
	RefID   string `json:"refId,omitempty"`
}

// Field 是 DataFrame 中的一列
type Field struct {
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Values []any  `json:"values"`
}

// DataFrame 是后端返回的一个结果单元
type DataFrame struct {
	RefID  string   `json:"refId,omitempty"`
	Name   string   `json:"name,omitempty"`
	Fields []*Field `json:"fields"`
}

// QueryResponse 是后端执行器的单次响应
type QueryResponse struct {
	Error *ResponseError `json:"error,omitempty"`
	Data  []*DataFrame   `json:"data"`
}

// MetricFindValue 是变量搜索返回的一个候选值
type MetricFindValue struct {
	Text string `json:"text"`
}
