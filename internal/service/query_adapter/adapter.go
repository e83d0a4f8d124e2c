// Package query_adapter file: internal/service/query_adapter/adapter.go
package query_adapter

import (
	"SnowAegis/internal/core/domain"
	"SnowAegis/internal/core/port"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

// Adapter 负责查询发出前的变量替换，以及把后端表格结果整理为变量候选值。
// 它不持有调用之间的可变状态。
type Adapter struct {
	settings domain.InstanceSettings
	expander port.TemplateExpander
	executor port.QueryExecutor
}

// New 创建一个绑定到指定数据源设置的 Adapter
func New(settings domain.InstanceSettings, expander port.TemplateExpander, executor port.QueryExecutor) (*Adapter, error) {
	if expander == nil {
		return nil, errors.New("query_adapter: TemplateExpander 不能为 nil")
	}
	if executor == nil {
		return nil, errors.New("query_adapter: QueryExecutor 不能为 nil")
	}
	return &Adapter{settings: settings, expander: expander, executor: executor}, nil
}

// Interpolate 用当前变量绑定替换 queryText 中的占位符，返回新的查询，不修改入参。
func (a *Adapter) Interpolate(query domain.Query, bindings domain.Bindings) domain.Query {
	out := query.Clone()
	out.QueryText = a.expander.Replace(query.QueryText, bindings, FormatSQLList)
	return out
}

// ShouldExecute 判断查询是否需要发往后端：文本为空或被隐藏时跳过
func ShouldExecute(query domain.Query) bool {
	return query.QueryText != "" && !query.Hide
}

// Query 过滤掉不需要执行的 target，替换变量后一次性转发给后端。
// 没有剩余 target 时直接返回空响应，不访问后端。
func (a *Adapter) Query(ctx context.Context, req domain.QueryRequest, bindings domain.Bindings) (*domain.QueryResponse, error) {
	targets := make([]domain.Query, 0, len(req.Targets))
	for _, q := range req.Targets {
		if !ShouldExecute(q) {
			continue
		}
		targets = append(targets, a.Interpolate(q, bindings))
	}
	if len(targets) == 0 {
		return &domain.QueryResponse{Data: []*domain.DataFrame{}}, nil
	}

	out := req
	out.Targets = targets
	slog.Debug("查询适配器: 转发查询到后端", "datasource", a.settings.UID, "targets", len(targets))
	resp, err := a.executor.Execute(ctx, a.settings, out)
	if err != nil {
		return nil, fmt.Errorf("后端查询调用失败: %w", err)
	}
	if resp == nil {
		return nil, ErrMalformed("后端未返回响应")
	}
	return resp, nil
}

// SearchValues 执行一次变量搜索查询，把所有列的所有值按顺序展开为候选值。
// 文本为空时直接返回空列表，不访问后端。
func (a *Adapter) SearchValues(ctx context.Context, queryText string) ([]domain.MetricFindValue, error) {
	if queryText == "" {
		return []domain.MetricFindValue{}, nil
	}

	req := domain.QueryRequest{
		Targets: []domain.Query{{
			RefID:     domain.SearchRefID,
			QueryText: queryText,
		}},
		MaxDataPoints: 0,
	}

	resp, err := a.executor.Execute(ctx, a.settings, req)
	if err != nil {
		return nil, fmt.Errorf("变量搜索调用失败: %w", err)
	}
	if resp == nil {
		return nil, ErrMalformed("后端未返回响应")
	}
	if resp.Error != nil {
		slog.Warn("变量搜索: 后端报告错误", "datasource", a.settings.UID, "error", resp.Error.Message)
		return nil, &port.QueryExecutionError{Message: resp.Error.Message, RefID: resp.Error.RefID}
	}

	values := make([]domain.MetricFindValue, 0)
	for i, frame := range resp.Data {
		if frame == nil {
			return nil, ErrMalformed(fmt.Sprintf("第 %d 个 DataFrame 为空", i))
		}
		for _, field := range frame.Fields {
			if field == nil {
				continue
			}
			for _, v := range field.Values {
				values = append(values, domain.MetricFindValue{Text: textOf(v)})
			}
		}
	}
	return values, nil
}

// ErrMalformed 包装 port.ErrMalformedResponse 并附带原因
func ErrMalformed(reason string) error {
	return fmt.Errorf("%w: %s", port.ErrMalformedResponse, reason)
}

// textOf 把单元格值转为候选值文本。经过 JSON 传输的数字都是 float64，需按十进制输出，
// 否则 1234567 会变成 1.234567e+06。
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}
