package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/redis"
)

// RateStore описывает счётчики Redis, нужные ограничителю.
type RateStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// RateLimiter ограничивает число запросов с одного ключа (IP) в фиксированном окне.
type RateLimiter struct {
	store   RateStore
	log     *logger.Logger
	enabled bool
	limit   int64
	window  time.Duration
	prefix  string
}

// NewRateLimiter создаёт ограничитель. Без хранилища или конфигурации он пропускает все запросы.
func NewRateLimiter(store RateStore, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	if store == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{enabled: false}
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = redis.KeyPrefixRateLimit
	}

	return &RateLimiter{
		store:   store,
		log:     log,
		enabled: true,
		limit:   int64(cfg.Requests),
		window:  time.Duration(cfg.WindowSeconds) * time.Second,
		prefix:  prefix,
	}
}

// Allow возвращает признак разрешения, оставшийся лимит и время сброса окна.
func (r *RateLimiter) Allow(ctx context.Context, key string) (allowed bool, remaining int64, resetAt time.Time, err error) {
	if !r.enabled {
		return true, r.limit, time.Now().Add(r.window), nil
	}

	now := time.Now()
	storeKey := r.makeKey(key)

	count, err := r.store.Incr(ctx, storeKey)
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limiter incr failed: %w", err)
	}

	if count == 1 {
		if err := r.store.Expire(ctx, storeKey, r.window); err != nil {
			r.log.WithError(err).WithField("key", storeKey).Warn("Failed to set rate limit ttl")
		}
	}

	ttl, ttlErr := r.store.TTL(ctx, storeKey)
	if ttlErr != nil || ttl <= 0 {
		if ttlErr != nil {
			r.log.WithError(ttlErr).WithField("key", storeKey).Warn("Failed to get rate limit ttl")
		}
		ttl = r.window
	}

	remaining = r.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= r.limit, remaining, now.Add(ttl), nil
}

// Usage возвращает использованное число запросов в текущем окне и время его сброса.
func (r *RateLimiter) Usage(ctx context.Context, key string) (used int64, remaining int64, resetAt *time.Time, err error) {
	if !r.enabled {
		return 0, r.limit, nil, nil
	}

	storeKey := r.makeKey(key)
	count, err := r.store.GetInt(ctx, storeKey)
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return 0, r.limit, nil, nil
		}
		return 0, 0, nil, fmt.Errorf("rate limiter usage failed: %w", err)
	}

	ttl, ttlErr := r.store.TTL(ctx, storeKey)
	if ttlErr != nil {
		r.log.WithError(ttlErr).WithField("key", storeKey).Warn("Failed to get rate limit ttl")
	} else if ttl > 0 {
		tmp := time.Now().Add(ttl)
		resetAt = &tmp
	}

	remaining = r.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count, remaining, resetAt, nil
}

func (r *RateLimiter) makeKey(key string) string {
	return redis.GenerateKey(r.prefix, strings.ReplaceAll(key, ":", "_"))
}

// Limit возвращает лимит для текущего окна.
func (r *RateLimiter) Limit() int64 {
	return r.limit
}

// Enabled сообщает, включён ли rate limiting.
func (r *RateLimiter) Enabled() bool {
	return r.enabled
}

// ExtractClientIP получает IP из заголовков прокси или RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
