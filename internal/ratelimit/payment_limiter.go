package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/servineo/servineo/internal/config"
)

const (
	keyPaymentUser    = "payment:user:%s:%s"
	keyPaymentCapture = "payment:capture:%s"

	captureLockTTL = 30 * time.Second
)

// PaymentLimiter throttles the money-movement endpoints per user and
// serializes concurrent captures of the same request.
type PaymentLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	rate  float64
	burst int
}

func NewPaymentLimiter(cfg config.Config) (*PaymentLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.PaymentRate <= 0 || limitCfg.PaymentBurst <= 0 {
		return nil, errors.New("payment rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &PaymentLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    limitCfg.PaymentRate,
		burst:   limitCfg.PaymentBurst,
	}, nil
}

func (l *PaymentLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *PaymentLimiter) Allow(ctx context.Context, userID, endpoint string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyPaymentUser, strings.TrimSpace(userID), strings.TrimSpace(endpoint))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}

// TryLockCapture guards a capture so two in-flight requests for the same
// booking do not both hit the gateway.
func (l *PaymentLimiter) TryLockCapture(ctx context.Context, requestID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keyPaymentCapture, strings.TrimSpace(requestID))
	return l.locker.TryLock(ctx, key, captureLockTTL)
}

func (l *PaymentLimiter) ReleaseCapture(ctx context.Context, requestID, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keyPaymentCapture, strings.TrimSpace(requestID))
	return l.locker.Release(ctx, key, token)
}
