package utils

import (
	"context"
	"log"
	"strings"
	"time"

	"paylink/config"

	redis "github.com/redis/go-redis/v9"
)

// NewRedisClient returns nil when REDIS_ADDR is empty or the server does not
// answer; callers treat a nil client as "feature off".
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	// sanitize common mistakes like stray spaces
	addr := strings.ReplaceAll(strings.TrimSpace(cfg.Addr), " ", "")
	if addr == "" {
		return nil
	}
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Pass, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		log.Printf("[redis] warning: ping %s failed: %v", addr, err)
		_ = rc.Close()
		return nil
	}
	return rc
}
