package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket 토큰 버킷 알고리즘
//
// 토큰은 경과 시간에 비례해 소수 단위로 채워지므로 초당 1개 미만의 속도도 표현된다.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // 초당 추가되는 토큰 수
	lastRefill time.Time
	lastUsed   time.Time
	now        func() time.Time
}

// NewTokenBucket capacity개로 가득 찬 버킷 생성
func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity, refillRate int64, now func() time.Time) *TokenBucket {
	t := now()
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: float64(refillRate),
		lastRefill: t,
		lastUsed:   t,
		now:        now,
	}
}

// Allow consumes one token if available.
func (tb *TokenBucket) Allow() bool {
	return tb.AllowN(1)
}

func (tb *TokenBucket) AllowN(n int64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	tb.lastUsed = tb.lastRefill

	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

// Tokens 현재 남은 토큰 수 (소수점 이하 버림)
func (tb *TokenBucket) Tokens() int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return int64(tb.tokens)
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// idleSince reports whether the bucket is full and untouched since before t.
func (tb *TokenBucket) idleSince(t time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens >= tb.capacity && tb.lastUsed.Before(t)
}

// RateLimiter 키(IP 등)별 토큰 버킷 관리
type RateLimiter struct {
	mu              sync.RWMutex
	buckets         map[string]*TokenBucket
	capacity        int64
	refillRate      int64
	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewRateLimiter 백그라운드 정리 루프와 함께 생성. 사용 후 Stop 호출
func NewRateLimiter(capacity, refillRate int64) *RateLimiter {
	rl := newRateLimiter(capacity, refillRate, time.Now)
	go rl.cleanupLoop()
	return rl
}

func newRateLimiter(capacity, refillRate int64, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		buckets:         make(map[string]*TokenBucket),
		capacity:        capacity,
		refillRate:      refillRate,
		cleanupInterval: 10 * time.Minute,
		lastCleanup:     now(),
		now:             now,
		stopChan:        make(chan struct{}),
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.AllowN(key, 1)
}

func (rl *RateLimiter) AllowN(key string, n int64) bool {
	return rl.getBucket(key).AllowN(n)
}

func (rl *RateLimiter) getBucket(key string) *TokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists = rl.buckets[key]; exists {
		return bucket
	}

	bucket = newTokenBucket(rl.capacity, rl.refillRate, rl.now)
	rl.buckets[key] = bucket
	return bucket
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopChan:
			return
		}
	}
}

// cleanup 가득 차 있고 한동안 쓰이지 않은 버킷 제거
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.cleanupInterval)
	for key, bucket := range rl.buckets {
		if bucket.idleSince(cutoff) {
			delete(rl.buckets, key)
		}
	}
	rl.lastCleanup = now
}

func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// Stop 정리 루프 종료
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return map[string]interface{}{
		"active_buckets": len(rl.buckets),
		"capacity":       rl.capacity,
		"refill_rate":    rl.refillRate,
		"last_cleanup":   rl.lastCleanup,
	}
}
