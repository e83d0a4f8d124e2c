// file: internal/adapter/datasource/snowflake/backend.go
package snowflake

import (
	"SnowAegis/internal/adapter/backend/backendrpc"
	"SnowAegis/internal/core/domain"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// 编译期断言
var _ backendrpc.BackendServer = (*Backend)(nil)

// Backend 是 Snowflake 后端插件的 gRPC 服务实现
type Backend struct {
	manager *Manager
}

// NewBackend 创建后端服务
func NewBackend(m *Manager) *Backend {
	if m == nil {
		panic("snowflake.NewBackend: manager 不能为 nil")
	}
	return &Backend{manager: m}
}

// QueryData 并发执行请求中的所有查询，合并为一个响应。
// 单个查询失败时写入响应的 error (第一个失败的查询为准)，其他查询的结果照常返回。
func (b *Backend) QueryData(ctx context.Context, req *backendrpc.QueryDataRequest) (*domain.QueryResponse, error) {
	resp := &domain.QueryResponse{Data: []*domain.DataFrame{}}

	inst, err := b.manager.Get(req.DataSource)
	if err != nil {
		slog.Error("Snowflake: 获取数据源实例失败", "uid", req.DataSource.UID, "error", err)
		resp.Error = &domain.ResponseError{Message: err.Error()}
		return resp, nil
	}
	defer inst.release()

	targets := req.Request.Targets
	frames := make([]*domain.DataFrame, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	if inst.cfg.MaxQueued > 0 {
		g.SetLimit(inst.cfg.MaxQueued)
	}
	for i, q := range targets {
		i, q := i, q
		g.Go(func() error {
			frames[i], errs[i] = b.runQuery(ctx, inst, req.Request, q)
			return nil
		})
	}
	_ = g.Wait()

	for i, q := range targets {
		if errs[i] != nil {
			slog.Warn("Snowflake: 查询执行失败", "uid", inst.uid, "refId", q.RefID, "error", errs[i])
			if resp.Error == nil {
				resp.Error = &domain.ResponseError{Message: errs[i].Error(), RefID: q.RefID}
			}
			continue
		}
		if frames[i] != nil {
			resp.Data = append(resp.Data, frames[i])
		}
	}
	return resp, nil
}

func (b *Backend) runQuery(ctx context.Context, inst *Instance, req domain.QueryRequest, q domain.Query) (*domain.DataFrame, error) {
	if strings.TrimSpace(q.QueryText) == "" {
		return nil, nil
	}
	exp, err := ExpandMacros(q.QueryText, req)
	if err != nil {
		return nil, err
	}
	text := exp.SQL
	queryType := q.QueryType
	if queryType == "" {
		queryType = domain.QueryTypeTable
	}

	// $__timeGroup 未指定补点方式时使用查询的 fillMode
	fill := exp.Fill
	if exp.Interval > 0 && !exp.HasFill {
		if fill, err = ParseFill(q.FillMode); err != nil {
			return nil, err
		}
	}
	applyFill := queryType == domain.QueryTypeTimeSeries && exp.Interval > 0 &&
		fill.Mode != FillNone && req.Range != nil && !req.Range.IsZero()

	useCache := inst.useCache(q)
	key := cacheKey(queryType, text, q.TimeColumns)
	if applyFill {
		key += "\x00" + fill.String() + "\x00" + req.Range.From.UTC().String() + "\x00" + req.Range.To.UTC().String()
	}
	if useCache {
		if cached, ok := inst.cache.Get(key); ok {
			QueriesTotal.WithLabelValues(queryType, sourceCache).Inc()
			return withRefID(cached, q.RefID), nil
		}
	}

	rows, err := inst.db.QueryContext(ctx, text)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	frame, err := frameFromRows(rows)
	if err != nil {
		return nil, err
	}
	if queryType == domain.QueryTypeTimeSeries {
		if idx := toTimeSeries(frame, q.TimeColumns); idx >= 0 && applyFill {
			fillGaps(frame, idx, *req.Range, exp.Interval, fill)
		}
	}
	QueriesTotal.WithLabelValues(queryType, sourceDatabase).Inc()

	if useCache {
		inst.cache.Add(key, frame)
	}
	return withRefID(frame, q.RefID), nil
}

// CheckHealth 通过 SELECT 1 检查数据源是否可用
func (b *Backend) CheckHealth(ctx context.Context, req *backendrpc.CheckHealthRequest) (*backendrpc.CheckHealthResponse, error) {
	inst, err := b.manager.Get(req.DataSource)
	if err != nil {
		return &backendrpc.CheckHealthResponse{Status: backendrpc.StatusNotServing, Message: err.Error()}, nil
	}
	defer inst.release()
	var one int
	if err := inst.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &backendrpc.CheckHealthResponse{Status: backendrpc.StatusNotServing, Message: "健康检查查询没有返回结果"}, nil
		}
		return &backendrpc.CheckHealthResponse{Status: backendrpc.StatusNotServing, Message: err.Error()}, nil
	}
	return &backendrpc.CheckHealthResponse{Status: backendrpc.StatusServing, Message: "数据源连接正常"}, nil
}

func cacheKey(queryType, text string, timeColumns []string) string {
	return queryType + "\x00" + strings.Join(timeColumns, ",") + "\x00" + text
}

// withRefID 返回共享字段的浅拷贝，缓存中的 frame 不会被修改
func withRefID(f *domain.DataFrame, refID string) *domain.DataFrame {
	out := *f
	out.RefID = refID
	return &out
}
