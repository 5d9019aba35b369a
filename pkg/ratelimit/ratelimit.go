package ratelimit

import (
	"context"
	"sync"
	"time"
)

// 场所端点分组
const (
	VenueMarketsGet = "venue:markets:get"
	VenueBookGet    = "venue:book:get"
	VenueOrdersPost = "venue:orders:post"
)

// RateLimiter 速率限制器接口
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Remaining() int
}

// SlidingWindow 滑动窗口速率限制器
type SlidingWindow struct {
	limit      int           // 窗口内允许的请求数
	windowSize time.Duration // 窗口大小
	requests   []time.Time   // 窗口内请求时间戳（按时间升序）
	now        func() time.Time
	mu         sync.Mutex
}

// NewSlidingWindow 创建新的滑动窗口速率限制器
func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// prune 移除窗口外的请求（调用方持锁）
func (sw *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	sw.requests = sw.requests[i:]
}

// Allow 检查是否允许请求；允许时记录本次请求
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.prune(now)
	if len(sw.requests) >= sw.limit {
		return false
	}
	sw.requests = append(sw.requests, now)
	return true
}

// Wait 等待直到允许请求，ctx 取消时返回 ctx.Err()
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}

		sw.mu.Lock()
		waitTime := 10 * time.Millisecond
		if len(sw.requests) > 0 {
			if d := sw.windowSize - sw.now().Sub(sw.requests[0]); d > 0 {
				waitTime = d
			}
		}
		sw.mu.Unlock()

		t := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Remaining 窗口内剩余请求数
func (sw *SlidingWindow) Remaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.prune(sw.now())
	if n := sw.limit - len(sw.requests); n > 0 {
		return n
	}
	return 0
}

// Manager 按端点分组的速率限制
type Manager struct {
	limiters map[string]RateLimiter
	fallback RateLimiter
	mu       sync.RWMutex
}

// NewVenueManager 场所默认限制（每 10 秒）
func NewVenueManager() *Manager {
	m := &Manager{
		limiters: make(map[string]RateLimiter),
		fallback: NewSlidingWindow(500, 10*time.Second),
	}
	m.limiters[VenueMarketsGet] = NewSlidingWindow(20, 10*time.Second)
	m.limiters[VenueBookGet] = NewSlidingWindow(200, 10*time.Second)
	m.limiters[VenueOrdersPost] = NewSlidingWindow(200, 10*time.Second)
	return m
}

// Set 设置端点限制器
func (m *Manager) Set(endpoint string, l RateLimiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[endpoint] = l
}

// Limiter 获取指定端点的限制器，未配置时返回通用限制器
func (m *Manager) Limiter(endpoint string) RateLimiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.limiters[endpoint]; ok {
		return l
	}
	return m.fallback
}

// Wait 等待直到允许请求
func (m *Manager) Wait(ctx context.Context, endpoint string) error {
	return m.Limiter(endpoint).Wait(ctx)
}
