// file: internal/adapter/datasource/snowflake/manager.go
package snowflake

import (
	"SnowAegis/internal/core/domain"
	"database/sql"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	sf "github.com/snowflakedb/gosnowflake"
)

// Manager 按数据源 uid 管理 Instance。
// 设置的更新时间比已有实例新时会替换旧实例；空闲超时的实例会被移除。
// 被移除的实例在所有进行中的调用结束后才关闭连接池。
type Manager struct {
	mu        sync.Mutex
	instances *cache.Cache
	open      OpenFunc
}

// NewManager 创建实例管理器。idleTTL <= 0 表示实例永不过期；open 为 nil 时使用 sql.Open。
func NewManager(idleTTL time.Duration, open OpenFunc) *Manager {
	if open == nil {
		open = sql.Open
	}
	expiration := idleTTL
	cleanup := idleTTL
	if idleTTL <= 0 {
		expiration = cache.NoExpiration
		cleanup = 0
	}
	c := cache.New(expiration, cleanup)
	c.OnEvicted(func(uid string, v interface{}) {
		if inst, ok := v.(*Instance); ok {
			inst.retire()
		}
	})
	return &Manager{instances: c, open: open}
}

// Get 返回数据源对应的实例，不存在或已过时则创建。
// 返回的实例已登记一次使用，调用方用完后必须调用 release。
func (m *Manager) Get(settings domain.InstanceSettings) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.instances.Get(settings.UID); ok {
		inst := v.(*Instance)
		if settings.Updated.After(inst.updated) {
			slog.Info("Snowflake: 数据源设置已更新，重建实例", "uid", settings.UID)
		} else if inst.acquire() {
			// 续期
			m.instances.SetDefault(settings.UID, inst)
			return inst, nil
		}
		m.instances.Delete(settings.UID)
	}

	inst, err := newInstance(settings, m.open)
	if err != nil {
		return nil, err
	}
	applyDriverTuning(inst.cfg)
	inst.acquire()
	m.instances.SetDefault(settings.UID, inst)
	return inst, nil
}

// Instances 返回当前所有实例，按 uid 排序
func (m *Manager) Instances() []*Instance {
	items := m.instances.Items()
	out := make([]*Instance, 0, len(items))
	for _, item := range items {
		if inst, ok := item.Object.(*Instance); ok {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].uid < out[j].uid })
	return out
}

// Close 释放所有实例
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid := range m.instances.Items() {
		m.instances.Delete(uid)
	}
}

// applyDriverTuning 设置 gosnowflake 的进程级参数，最后创建的实例生效
func applyDriverTuning(cfg *Config) {
	if cfg.ChunkWorkers > 0 {
		sf.MaxChunkDownloadWorkers = cfg.ChunkWorkers
	}
	sf.CustomJSONDecoderEnabled = cfg.CustomJSONDecoderEnabled
}
