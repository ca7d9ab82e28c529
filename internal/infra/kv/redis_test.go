package kv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetClientConfigFromEnv_Defaults(t *testing.T) {
	cfg := getClientConfigFromEnv()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, 20, cfg.PoolSize)
}

func TestGetClientConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_POOL_SIZE", "50")
	t.Setenv("REDIS_READ_TIMEOUT", "2s")

	cfg := getClientConfigFromEnv()
	assert.Equal(t, "redis.internal:6380", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, 50, cfg.PoolSize)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
}

func TestGetClientConfigFromEnv_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("REDIS_POOL_SIZE", "-1")
	t.Setenv("REDIS_DIAL_TIMEOUT", "soon")

	cfg := getClientConfigFromEnv()
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, 20, cfg.PoolSize)
	assert.Equal(t, 3*time.Second, cfg.DialTimeout)
}
