// Package port file: internal/core/port/datasource.go
package port

import (
	"SnowAegis/internal/core/domain"
	"context"
	"errors"
)

// Standard errors
var (
	ErrDataSourceNotFound = errors.New("指定的数据源未找到")
	ErrMalformedResponse  = errors.New("后端响应格式不正确")
	ErrInvalidSecretField = errors.New("未知的密钥字段")
	ErrInvalidEditField   = errors.New("未知的配置字段")
)

// QueryExecutionError 表示后端在响应中报告了查询错误。
// Error() 原样返回后端提供的消息。
type QueryExecutionError struct {
	Message string
	RefID   string
}

func (e *QueryExecutionError) Error() string { return e.Message }

// QueryExecutor 是后端查询执行器。
// 每次调用只产生一个结果：一个响应或一个错误，不做重试。
type QueryExecutor interface {
	Execute(ctx context.Context, settings domain.InstanceSettings, req domain.QueryRequest) (*domain.QueryResponse, error)
}

// HealthChecker 检查某个数据源在后端是否可用
type HealthChecker interface {
	CheckHealth(ctx context.Context, settings domain.InstanceSettings) error
}

// TemplateExpander 是宿主提供的模板替换能力。
// format 负责把变量取值渲染为文本，扫描和替换由实现完成。
type TemplateExpander interface {
	Replace(text string, bindings domain.Bindings, format domain.ValueFormatter) string
}
