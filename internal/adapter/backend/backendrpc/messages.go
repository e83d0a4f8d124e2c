// Package backendrpc 定义网关与后端插件之间的 gRPC 服务。
// 所有消息都以 google.protobuf.Struct 传输，由本包负责与领域类型互转。
package backendrpc

import (
	"SnowAegis/internal/core/domain"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// 健康状态
const (
	StatusServing    = "SERVING"
	StatusNotServing = "NOT_SERVING"
)

// QueryDataRequest 是一次后端查询：数据源设置 + 查询请求
type QueryDataRequest struct {
	DataSource domain.InstanceSettings `json:"datasource"`
	Request    domain.QueryRequest     `json:"request"`
}

// CheckHealthRequest 请求检查某个数据源的连通性
type CheckHealthRequest struct {
	DataSource domain.InstanceSettings `json:"datasource"`
}

// CheckHealthResponse 是健康检查结果
type CheckHealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// toStruct 通过 JSON 把任意消息转换为 structpb.Struct
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("序列化消息失败: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("转换消息为 map 失败: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("创建 gRPC struct 失败: %w", err)
	}
	return s, nil
}

// fromStruct 把 structpb.Struct 解码到 v
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return fmt.Errorf("消息体不能为空")
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("读取 gRPC struct 失败: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("解码消息失败: %w", err)
	}
	return nil
}
