// Package port file: internal/core/port/service.go
package port

import (
	"SnowAegis/internal/core/domain"
	"context"
)

// SettingsStore 定义了数据源设置的持久化能力。
// 返回给调用方的设置只包含 configured 标记，不包含密钥原文。
type SettingsStore interface {
	Create(ctx context.Context, settings domain.DataSourceSettings) (*domain.DataSourceSettings, error)
	Get(ctx context.Context, uid string) (*domain.DataSourceSettings, error)
	List(ctx context.Context) ([]*domain.DataSourceSettings, error)
	Save(ctx context.Context, settings domain.DataSourceSettings) (*domain.DataSourceSettings, error)
	Delete(ctx context.Context, uid string) error

	// Decrypted 返回交给后端使用的设置，包含已解密的凭据
	Decrypted(ctx context.Context, uid string) (*domain.InstanceSettings, error)
}
