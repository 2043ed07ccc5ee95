package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisOpTimeout 单次Redis操作的超时时间
const redisOpTimeout = 3 * time.Second

// RedisCache 基于Redis的共享回答缓存
// 多实例部署时各实例命中同一份缓存。
// Clear只删除KeyNamespace前缀下的键，同库的其他业务数据不受影响
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 创建Redis缓存并验证连接
func NewRedisCache(config Config) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := opContext()
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get 读取缓存的回答
func (r *RedisCache) Get(key string) (string, bool, error) {
	ctx, cancel := opContext()
	defer cancel()

	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set 写入缓存，ttl为0时条目不过期
func (r *RedisCache) Set(key string, value string, ttl time.Duration) error {
	ctx, cancel := opContext()
	defer cancel()
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Delete 删除缓存项
func (r *RedisCache) Delete(key string) error {
	ctx, cancel := opContext()
	defer cancel()
	return r.client.Del(ctx, key).Err()
}

// Clear 删除命名空间下的所有键
func (r *RedisCache) Clear() error {
	ctx, cancel := opContext()
	defer cancel()

	iter := r.client.Scan(ctx, 0, KeyNamespace+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// opContext 带超时的单次操作上下文
func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

func init() {
	RegisterCache("redis", NewRedisCache)
}
