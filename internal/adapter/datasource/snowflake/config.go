// Package snowflake file: internal/adapter/datasource/snowflake/config.go
//
// Snowflake 后端：解析数据源配置、管理连接实例、执行查询。
package snowflake

import (
	"SnowAegis/internal/core/domain"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// 调优字段的默认值，与前端约定一致，均为字符串
const (
	defaultMaxOpenConnections = "100"
	defaultConnectionLifetime = "60"
	defaultCacheSize          = "2048"
	defaultCacheRetention     = "60"
	defaultMaxQueuedQueries   = "0"
	defaultChunkWorkers       = "0"
)

var validate = validator.New()

// tuningFields 是填充默认值后的原始调优字段
type tuningFields struct {
	MaxOpenConnections      string `validate:"numeric"`
	MaxQueuedQueries        string `validate:"numeric"`
	ConnectionLifetime      string `validate:"numeric"`
	CacheSize               string `validate:"numeric"`
	CacheRetention          string `validate:"numeric"`
	MaxChunkDownloadWorkers string `validate:"numeric"`
}

// Config 是后端解析后的数据源配置
type Config struct {
	domain.ConnectionConfig

	MaxOpenConns   int
	MaxQueued      int
	ConnLifetime   time.Duration
	CacheSize      int
	CacheRetention time.Duration
	ChunkWorkers   int
}

// ParseConfig 填充默认值并把调优字段解析为整数。
// 任一字段不是整数时返回配置错误。
func ParseConfig(c domain.ConnectionConfig) (*Config, error) {
	raw := tuningFields{
		MaxOpenConnections:      orDefault(c.MaxOpenConnections, defaultMaxOpenConnections),
		MaxQueuedQueries:        orDefault(c.MaxQueuedQueries, defaultMaxQueuedQueries),
		ConnectionLifetime:      orDefault(c.ConnectionLifetime, defaultConnectionLifetime),
		CacheSize:               orDefault(c.CacheSize, defaultCacheSize),
		CacheRetention:          orDefault(c.CacheRetention, defaultCacheRetention),
		MaxChunkDownloadWorkers: orDefault(c.MaxChunkDownloadWorkers, defaultChunkWorkers),
	}
	if err := validate.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("数据源配置无效: 字段 '%s' 必须是整数", verrs[0].Field())
		}
		return nil, fmt.Errorf("数据源配置无效: %w", err)
	}

	cfg := &Config{ConnectionConfig: c}
	var err error
	if cfg.MaxOpenConns, err = atoi("maxOpenConnections", raw.MaxOpenConnections); err != nil {
		return nil, err
	}
	if cfg.MaxQueued, err = atoi("maxQueuedQueries", raw.MaxQueuedQueries); err != nil {
		return nil, err
	}
	lifetime, err := atoi("connectionLifetime", raw.ConnectionLifetime)
	if err != nil {
		return nil, err
	}
	cfg.ConnLifetime = time.Duration(lifetime) * time.Minute
	if cfg.CacheSize, err = atoi("cacheSize", raw.CacheSize); err != nil {
		return nil, err
	}
	retention, err := atoi("cacheRetention", raw.CacheRetention)
	if err != nil {
		return nil, err
	}
	cfg.CacheRetention = time.Duration(retention) * time.Minute
	if cfg.ChunkWorkers, err = atoi("maxChunkDownloadWorkers", raw.MaxChunkDownloadWorkers); err != nil {
		return nil, err
	}
	return cfg, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// atoi 只接受非负整数，validator 的 numeric 也会放行小数和负数
func atoi(field, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("数据源配置无效: 字段 '%s' 必须是整数: %w", field, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("数据源配置无效: 字段 '%s' 不能为负数", field)
	}
	return n, nil
}
