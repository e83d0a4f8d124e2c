// file: internal/adapter/datasource/snowflake/config_test.go

package snowflake

import (
	"SnowAegis/internal/core/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig(domain.ConnectionConfig{Account: "acme"})
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.MaxOpenConns)
	assert.Equal(t, 0, cfg.MaxQueued)
	assert.Equal(t, 60*time.Minute, cfg.ConnLifetime)
	assert.Equal(t, 2048, cfg.CacheSize)
	assert.Equal(t, 60*time.Minute, cfg.CacheRetention)
	assert.Equal(t, 0, cfg.ChunkWorkers)
	assert.Equal(t, "acme", cfg.Account)
}

func TestParseConfig_Explicit(t *testing.T) {
	cfg, err := ParseConfig(domain.ConnectionConfig{
		MaxOpenConnections: "5",
		MaxQueuedQueries:   "2",
		ConnectionLifetime: " 10 ",
		CacheSize:          "16",
		CacheRetention:     "1",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxOpenConns)
	assert.Equal(t, 2, cfg.MaxQueued)
	assert.Equal(t, 10*time.Minute, cfg.ConnLifetime)
	assert.Equal(t, 16, cfg.CacheSize)
	assert.Equal(t, time.Minute, cfg.CacheRetention)
}

func TestParseConfig_Invalid(t *testing.T) {
	cases := []domain.ConnectionConfig{
		{MaxOpenConnections: "many"},
		{CacheSize: "1.5"},
		{CacheRetention: "-1"},
		{MaxChunkDownloadWorkers: "x"},
	}
	for _, c := range cases {
		_, err := ParseConfig(c)
		assert.Error(t, err, "配置 %+v 应当无效", c)
	}
}
