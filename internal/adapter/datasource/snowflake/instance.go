// file: internal/adapter/datasource/snowflake/instance.go
package snowflake

import (
	"SnowAegis/internal/core/domain"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DriverName 是 gosnowflake 注册的 database/sql 驱动名
const DriverName = "snowflake"

// OpenFunc 打开一个数据库连接池，默认为 sql.Open
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

// Instance 是一个数据源对应的连接池和结果缓存
type Instance struct {
	uid     string
	name    string
	updated time.Time
	cfg     *Config

	db    *sql.DB
	cache *expirable.LRU[string, *domain.DataFrame]

	// refs 是正在使用实例的调用数。实例被替换或过期后先标记 retired，最后一个调用结束时才关闭连接池。
	mu       sync.Mutex
	refs     int
	retired  bool
	disposed bool
}

func newInstance(settings domain.InstanceSettings, open OpenFunc) (*Instance, error) {
	cfg, err := ParseConfig(settings.JSONData)
	if err != nil {
		return nil, err
	}

	dsn := ConnectionString(cfg, settings.Credential)
	slog.Info("Snowflake: 正在创建数据源实例", "uid", settings.UID, "dsn", MaskConnectionString(dsn))
	db, err := open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("打开 Snowflake 连接失败: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	inst := &Instance{
		uid:     settings.UID,
		name:    settings.Name,
		updated: settings.Updated,
		cfg:     cfg,
		db:      db,
	}
	if cfg.UseCaching {
		inst.cache = expirable.NewLRU[string, *domain.DataFrame](cfg.CacheSize, nil, cfg.CacheRetention)
	}
	return inst, nil
}

// useCache 判断某个查询是否走结果缓存：查询级 useCache 优先于 useCacheByDefault
func (i *Instance) useCache(q domain.Query) bool {
	if i.cache == nil {
		return false
	}
	if q.UseCache != nil {
		return *q.UseCache
	}
	return i.cfg.UseCacheByDefault
}

// acquire 登记一次使用，实例已退役时返回 false
func (i *Instance) acquire() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.retired {
		return false
	}
	i.refs++
	return true
}

// release 结束一次使用
func (i *Instance) release() {
	i.mu.Lock()
	i.refs--
	dispose := i.refs == 0 && i.retired && !i.disposed
	if dispose {
		i.disposed = true
	}
	i.mu.Unlock()
	if dispose {
		i.Dispose()
	}
}

// retire 让实例不再接受新的使用，没有进行中的调用时立即释放
func (i *Instance) retire() {
	i.mu.Lock()
	i.retired = true
	dispose := i.refs == 0 && !i.disposed
	if dispose {
		i.disposed = true
	}
	i.mu.Unlock()
	if dispose {
		i.Dispose()
	}
}

// Dispose 关闭连接池并清空缓存
func (i *Instance) Dispose() {
	slog.Info("Snowflake: 正在释放数据源实例", "uid", i.uid)
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			slog.Error("Snowflake: 关闭连接池失败", "uid", i.uid, "error", err)
		}
	}
	if i.cache != nil {
		i.cache.Purge()
	}
}
