// file: internal/adapter/backend/backendrpc/service.go
package backendrpc

import (
	"SnowAegis/internal/core/domain"
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// 服务与方法的完整名称
const (
	ServiceName       = "snowaegis.backend.v1.Backend"
	QueryDataMethod   = "/" + ServiceName + "/QueryData"
	CheckHealthMethod = "/" + ServiceName + "/CheckHealth"
)

// BackendServer 是后端插件需要实现的服务接口。
// 查询失败应放在响应的 Error 字段里，只有请求本身无法处理时才返回 error。
type BackendServer interface {
	QueryData(ctx context.Context, req *QueryDataRequest) (*domain.QueryResponse, error)
	CheckHealth(ctx context.Context, req *CheckHealthRequest) (*CheckHealthResponse, error)
}

// structBackend 是注册到 gRPC 的处理器类型，负责 Struct 与领域类型的转换
type structBackend interface {
	queryData(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	checkHealth(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type structServer struct {
	impl BackendServer
}

func (s *structServer) queryData(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req QueryDataRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := s.impl.QueryData(ctx, &req)
	if err != nil {
		if _, ok := status.FromError(err); ok {
			return nil, err
		}
		return nil, status.Errorf(codes.Internal, "查询数据失败: %v", err)
	}
	if resp == nil {
		resp = &domain.QueryResponse{Data: []*domain.DataFrame{}}
	}
	out, err := toStruct(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "序列化查询结果失败: %v", err)
	}
	return out, nil
}

func (s *structServer) checkHealth(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CheckHealthRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := s.impl.CheckHealth(ctx, &req)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "健康检查失败: %v", err)
	}
	out, err := toStruct(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "序列化健康检查结果失败: %v", err)
	}
	return out, nil
}

func queryDataHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(structBackend).queryData(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: QueryDataMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(structBackend).queryData(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func checkHealthHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(structBackend).checkHealth(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CheckHealthMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(structBackend).checkHealth(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc 描述后端服务，供 grpc.Server 注册
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*structBackend)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "QueryData", Handler: queryDataHandler},
		{MethodName: "CheckHealth", Handler: checkHealthHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "backendrpc/service.go",
}

// RegisterBackendServer 把 BackendServer 实现注册到 gRPC 服务器
func RegisterBackendServer(s grpc.ServiceRegistrar, impl BackendServer) {
	s.RegisterService(&ServiceDesc, &structServer{impl: impl})
}

// Client 是后端服务的客户端
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient 基于已有连接创建客户端
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// QueryData 调用后端执行查询，只等待一个响应
func (c *Client) QueryData(ctx context.Context, req *QueryDataRequest, opts ...grpc.CallOption) (*domain.QueryResponse, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, QueryDataMethod, in, out, opts...); err != nil {
		return nil, err
	}
	var resp domain.QueryResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckHealth 调用后端健康检查
func (c *Client) CheckHealth(ctx context.Context, req *CheckHealthRequest, opts ...grpc.CallOption) (*CheckHealthResponse, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CheckHealthMethod, in, out, opts...); err != nil {
		return nil, err
	}
	var resp CheckHealthResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
