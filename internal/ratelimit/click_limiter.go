package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/domijob/domijob/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyClickIP = "affiliate:click:ip:%s"

// ClickLimiter throttles the public click-tracking endpoint per client IP.
// A nil limiter (rate limiting disabled) allows everything.
type ClickLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewClickLimiter(cfg config.Config) (*ClickLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.ClickRate <= 0 || limitCfg.ClickBurst <= 0 {
		return nil, errors.New("click rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &ClickLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.ClickRate,
		burst:   limitCfg.ClickBurst,
	}, nil
}

func (l *ClickLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *ClickLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyClickIP, ip), l.rate, l.burst)
}
