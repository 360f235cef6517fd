package database

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/posi-ecosystem/fati-backend/internal/config"
)

// InitRedis initializes Redis client with config. It returns nil when Redis
// is unreachable; callers degrade to running without it.
func InitRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[REDIS] Redis connection failed, continuing without Redis: %v", err)
		rdb.Close()
		return nil
	}

	log.Println("[REDIS] Redis connection established")
	return rdb
}
