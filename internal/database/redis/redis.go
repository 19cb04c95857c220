package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/thedomainai/agentic-stack/internal/config"
)

// NewClient 根据配置创建一个 Redis 客户端实例并验证连接。
// 客户端由调用方持有并注入到需要它的组件，进程内不保存全局实例。
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 使用 Ping 检查连接是否成功。
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("无法连接到 Redis: %w", err)
	}

	return rdb, nil
}

// HealthCheck 检查 Redis 连接的健康状况。
func HealthCheck(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("Redis 客户端未初始化")
	}
	return client.Ping(ctx).Err()
}
