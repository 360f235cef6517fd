package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/posi-ecosystem/fati-backend/internal/config"
)

// TransferLimiter caps the number of transfers an account can send per
// window. A nil Redis client disables the limit.
type TransferLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewTransferLimiter(redisClient *redis.Client, cfg config.LedgerConfig) *TransferLimiter {
	return &TransferLimiter{
		redis:  redisClient,
		limit:  cfg.TransferRateLimit,
		window: cfg.TransferRateWindow,
	}
}

func (l *TransferLimiter) Check(ctx context.Context, accountID string) error {
	if l == nil || l.redis == nil || l.limit <= 0 {
		return nil
	}

	count, err := l.redis.Get(ctx, rateLimitKey(accountID)).Int()
	if err != nil && err != redis.Nil {
		log.Printf("[LEDGER] Rate limit lookup failed for %s: %v", accountID, err)
		return nil
	}
	if count >= l.limit {
		return fmt.Errorf("%w: %d transfers per %s", ErrRateLimited, l.limit, l.window)
	}
	return nil
}

// Record counts one completed transfer.
func (l *TransferLimiter) Record(ctx context.Context, accountID string) {
	if l == nil || l.redis == nil || l.limit <= 0 {
		return
	}

	key := rateLimitKey(accountID)
	pipe := l.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[LEDGER] Rate limit update failed for %s: %v", accountID, err)
	}
}

func rateLimitKey(accountID string) string {
	return fmt.Sprintf("fati:transfer_rate:%s", accountID)
}
