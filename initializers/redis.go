package initializers

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InitRedis returns a client when REDIS_ADDR is set. A failed ping is logged
// and the client is still returned so callers can fall back per call.
func InitRedis(cfg AppConfig) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	rc := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		Logger.Warn("redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return rc
}
