package ratelimit

import (
	"context"
	"sync"
	"time"
)

// 端点 key
const (
	KeyInfo     = "hl:info"
	KeyExchange = "hl:exchange"
	KeyGeneral  = "hl:general"
)

// RateLimiter 速率限制器接口
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	GetRemaining() int
}

// TokenBucket 令牌桶速率限制器
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int // 每秒补充的令牌数
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket 创建令牌桶（初始为满）
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	tokensToAdd := int(now.Sub(tb.lastRefill).Seconds()) * tb.refillRate
	if tokensToAdd > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+tokensToAdd)
		tb.lastRefill = now
	}
}

// Allow 检查是否允许请求
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait 等待直到允许请求
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}

		waitTime := time.Second
		if tb.refillRate > 0 {
			waitTime = time.Second / time.Duration(tb.refillRate)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// GetRemaining 剩余令牌数
func (tb *TokenBucket) GetRemaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

// SlidingWindow 滑动窗口速率限制器
type SlidingWindow struct {
	limit      int
	windowSize time.Duration
	requests   []time.Time
	mu         sync.Mutex
}

// NewSlidingWindow 创建滑动窗口
func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:      limit,
		windowSize: windowSize,
		requests:   make([]time.Time, 0, limit),
	}
}

func (sw *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	sw.requests = sw.requests[i:]
}

// Allow 检查是否允许请求
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.evict(now)
	if len(sw.requests) >= sw.limit {
		return false
	}
	sw.requests = append(sw.requests, now)
	return true
}

// Wait 等待直到允许请求
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}

		sw.mu.Lock()
		waitTime := 100 * time.Millisecond
		if len(sw.requests) > 0 {
			if d := sw.windowSize - time.Since(sw.requests[0]); d > 0 {
				waitTime = d
			}
		}
		sw.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// GetRemaining 剩余请求数
func (sw *SlidingWindow) GetRemaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.evict(time.Now())
	return max(0, sw.limit-len(sw.requests))
}

// RateLimitManager 按端点管理限速器
type RateLimitManager struct {
	limiters map[string]RateLimiter
	mu       sync.RWMutex
}

// NewRateLimitManager 创建带默认限速的管理器
func NewRateLimitManager() *RateLimitManager {
	m := &RateLimitManager{limiters: make(map[string]RateLimiter)}
	m.initDefaultLimiters()
	return m
}

// initDefaultLimiters Hyperliquid 单 IP 1200 weight/分钟。
// info 请求多数 weight=20，l2Book 等为 2；这里按 20 折算成 60 次/分钟。
func (m *RateLimitManager) initDefaultLimiters() {
	m.limiters[KeyInfo] = NewSlidingWindow(60, time.Minute)
	m.limiters[KeyExchange] = NewTokenBucket(20, 10)
	m.limiters[KeyGeneral] = NewSlidingWindow(600, time.Minute)
}

// SetLimiter 覆盖某个端点的限速器
func (m *RateLimitManager) SetLimiter(key string, limiter RateLimiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[key] = limiter
}

// GetLimiter 获取端点限速器，未知 key 使用 general
func (m *RateLimitManager) GetLimiter(key string) RateLimiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.limiters[key]; ok {
		return l
	}
	return m.limiters[KeyGeneral]
}

// Wait 等待直到允许请求
func (m *RateLimitManager) Wait(ctx context.Context, key string) error {
	return m.GetLimiter(key).Wait(ctx)
}

// Allow 检查是否允许请求
func (m *RateLimitManager) Allow(key string) bool {
	return m.GetLimiter(key).Allow()
}
