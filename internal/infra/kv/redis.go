// Package kv wires the Redis client used for rate-limit counters and the
// IP blocklist.
package kv

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds Redis client configuration.
type ClientConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// DefaultClientConfig returns the default Redis client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Addr:         "localhost:6379",
		DialTimeout:  3 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     20,
	}
}

// Open creates a Redis client from environment configuration and verifies
// connectivity. The process exits if Redis is unreachable: the gateway
// cannot rate-limit or enforce blocks without it.
func Open() *redis.Client {
	cfg := getClientConfigFromEnv()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to ping redis at %s: %v", cfg.Addr, err)
	}

	slog.Info("redis connection established",
		slog.String("addr", cfg.Addr),
		slog.Int("db", cfg.DB),
		slog.Int("pool_size", cfg.PoolSize))
	return client
}

// getClientConfigFromEnv reads Redis configuration from environment
// variables, falling back to defaults.
func getClientConfigFromEnv() ClientConfig {
	cfg := DefaultClientConfig()

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.Password = os.Getenv("REDIS_PASSWORD")

	if db := os.Getenv("REDIS_DB"); db != "" {
		if val, err := strconv.Atoi(db); err == nil && val >= 0 {
			cfg.DB = val
		}
	}
	if pool := os.Getenv("REDIS_POOL_SIZE"); pool != "" {
		if val, err := strconv.Atoi(pool); err == nil && val > 0 {
			cfg.PoolSize = val
		}
	}
	if d := os.Getenv("REDIS_DIAL_TIMEOUT"); d != "" {
		if val, err := time.ParseDuration(d); err == nil && val > 0 {
			cfg.DialTimeout = val
		}
	}
	if d := os.Getenv("REDIS_READ_TIMEOUT"); d != "" {
		if val, err := time.ParseDuration(d); err == nil && val > 0 {
			cfg.ReadTimeout = val
		}
	}
	if d := os.Getenv("REDIS_WRITE_TIMEOUT"); d != "" {
		if val, err := time.ParseDuration(d); err == nil && val > 0 {
			cfg.WriteTimeout = val
		}
	}

	return cfg
}
