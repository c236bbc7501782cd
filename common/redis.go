package common

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"

	"github.com/often-ai/gateway/common/config"
	"github.com/often-ai/gateway/common/logger"
)

var RDB redis.UniversalClient

var redisEnabled atomic.Bool

func IsRedisEnabled() bool {
	return redisEnabled.Load()
}

// InitRedisClient connects to Redis when REDIS_CONN_STRING is set. Redis is
// optional; without it the identity middleware falls back to its in-process cache.
func InitRedisClient() (err error) {
	if config.RedisConnString == "" {
		logger.Logger.Info("REDIS_CONN_STRING not set, Redis is not enabled")
		return nil
	}

	opt, err := redis.ParseURL(config.RedisConnString)
	if err != nil {
		return errors.Wrap(err, "parse redis connection string")
	}
	RDB = redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = RDB.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "ping redis")
	}

	redisEnabled.Store(true)
	logger.Logger.Info("redis enabled")
	return nil
}

func RedisSet(ctx context.Context, key string, value string, expiration time.Duration) error {
	return errors.Wrap(RDB.Set(ctx, key, value, expiration).Err(), "redis set")
}

func RedisGet(ctx context.Context, key string) (string, error) {
	val, err := RDB.Get(ctx, key).Result()
	if err != nil {
		return "", errors.Wrap(err, "redis get")
	}
	return val, nil
}

func RedisDel(ctx context.Context, key string) error {
	return errors.Wrap(RDB.Del(ctx, key).Err(), "redis del")
}

func CloseRedisClient() {
	if RDB == nil {
		return
	}
	if err := RDB.Close(); err != nil {
		logger.Logger.Warn("failed to close redis client", zap.Error(err))
	}
}
