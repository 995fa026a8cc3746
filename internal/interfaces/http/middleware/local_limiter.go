package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalRateLimiter 进程内令牌桶限流，Redis 未启用时使用
type LocalRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*localEntry
	ttl      time.Duration
	now      func() time.Time
	lastGC   time.Time
}

type localEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewLocalRateLimiter 创建进程内限流器
func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{
		limiters: make(map[string]*localEntry),
		ttl:      10 * time.Minute,
		now:      time.Now,
	}
}

// Allow 窗口内最多 limit 次，令牌按 window/limit 匀速补充
func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	return l.entry(key, limit, window, now).limiter.AllowN(now, 1), nil
}

// Remaining 当前可用令牌数
func (l *LocalRateLimiter) Remaining(_ context.Context, key string, limit int, window time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	return max(int(l.entry(key, limit, window, now).limiter.TokensAt(now)), 0), nil
}

func (l *LocalRateLimiter) entry(key string, limit int, window time.Duration, now time.Time) *localEntry {
	l.gc(now)

	e, ok := l.limiters[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		l.limiters[key] = e
	}
	e.lastAccess = now
	return e
}

// gc 清理长时间未访问的键
func (l *LocalRateLimiter) gc(now time.Time) {
	if now.Sub(l.lastGC) < l.ttl {
		return
	}
	l.lastGC = now
	cutoff := now.Add(-l.ttl)
	for key, e := range l.limiters {
		if e.lastAccess.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}
