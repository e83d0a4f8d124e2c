// file: internal/adapter/datasource/grpc_client/client.go
package grpc_client

import (
	"SnowAegis/internal/adapter/backend/backendrpc"
	"SnowAegis/internal/core/domain"
	"SnowAegis/internal/core/port"
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// 编译期断言，确保 ClientAdapter 实现了查询与健康检查接口
var (
	_ port.QueryExecutor = (*ClientAdapter)(nil)
	_ port.HealthChecker = (*ClientAdapter)(nil)
)

// backendClient 是 ClientAdapter 依赖的远程调用能力
type backendClient interface {
	QueryData(ctx context.Context, req *backendrpc.QueryDataRequest, opts ...grpc.CallOption) (*domain.QueryResponse, error)
	CheckHealth(ctx context.Context, req *backendrpc.CheckHealthRequest, opts ...grpc.CallOption) (*backendrpc.CheckHealthResponse, error)
}

// ClientAdapter 实现了 port.QueryExecutor 和 port.HealthChecker，
// 把所有调用转发给远程的 Snowflake 后端插件。
type ClientAdapter struct {
	client  backendClient
	conn    *grpc.ClientConn
	timeout time.Duration
}

// New 创建一个新的gRPC客户端适配器实例。timeout 为 0 时不限制单次调用耗时。
func New(pluginAddress string, timeout time.Duration) (*ClientAdapter, error) {
	// 创建一个不安全的gRPC连接（本地开发用），未来可增加TLS
	conn, err := grpc.NewClient(pluginAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("无法连接到gRPC插件 at %s: %w", pluginAddress, err)
	}

	return &ClientAdapter{
		client:  backendrpc.NewClient(conn),
		conn:    conn,
		timeout: timeout,
	}, nil
}

func (a *ClientAdapter) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

// Execute 把查询请求转发到插件，只返回一个结果
func (a *ClientAdapter) Execute(ctx context.Context, settings domain.InstanceSettings, req domain.QueryRequest) (*domain.QueryResponse, error) {
	slog.Debug("gRPC适配器: 正在将查询请求转发到插件", "uid", settings.UID, "targets", len(req.Targets))

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	resp, err := a.client.QueryData(ctx, &backendrpc.QueryDataRequest{DataSource: settings, Request: req})
	if err != nil {
		return nil, fmt.Errorf("gRPC QueryData 调用失败: %w", err)
	}
	return resp, nil
}

// CheckHealth 检查插件能否连接到该数据源
func (a *ClientAdapter) CheckHealth(ctx context.Context, settings domain.InstanceSettings) error {
	slog.Debug("gRPC适配器: 正在将 CheckHealth 请求转发到插件...", "uid", settings.UID)

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	res, err := a.client.CheckHealth(ctx, &backendrpc.CheckHealthRequest{DataSource: settings})
	if err != nil {
		return fmt.Errorf("gRPC CheckHealth 调用失败: %w", err)
	}
	if res.Status != backendrpc.StatusServing {
		if res.Message != "" {
			return fmt.Errorf("插件报告不健康状态: %s: %s", res.Status, res.Message)
		}
		return fmt.Errorf("插件报告不健康状态: %s", res.Status)
	}
	return nil
}

// Close 关闭与gRPC插件的连接
func (a *ClientAdapter) Close() error {
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

// Type 返回适配器的类型标识符
func (a *ClientAdapter) Type() string {
	return "grpc_plugin"
}
