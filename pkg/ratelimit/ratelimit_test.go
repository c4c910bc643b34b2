package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestTokenBucket_Allow(t *testing.T) {
	clock := newManualClock()
	bucket := newTokenBucket(5, 1, clock.Now)

	for i := 0; i < 5; i++ {
		assert.True(t, bucket.Allow(), "request %d should be allowed", i+1)
	}
	assert.False(t, bucket.Allow(), "6th request should be denied")

	clock.Advance(time.Second)
	assert.True(t, bucket.Allow(), "request after refill should be allowed")
	assert.False(t, bucket.Allow())
}

func TestTokenBucket_AllowN(t *testing.T) {
	clock := newManualClock()
	bucket := newTokenBucket(10, 2, clock.Now)

	assert.True(t, bucket.AllowN(10))
	assert.False(t, bucket.AllowN(1))

	clock.Advance(time.Second)
	assert.True(t, bucket.AllowN(2))
	assert.False(t, bucket.AllowN(1))
}

func TestTokenBucket_FractionalRefill(t *testing.T) {
	clock := newManualClock()
	bucket := newTokenBucket(1, 4, clock.Now)

	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())

	// 4 tokens/s → one token every 250ms
	clock.Advance(200 * time.Millisecond)
	assert.False(t, bucket.Allow())
	clock.Advance(50 * time.Millisecond)
	assert.True(t, bucket.Allow())
}

func TestTokenBucket_CapacityCap(t *testing.T) {
	clock := newManualClock()
	bucket := newTokenBucket(3, 10, clock.Now)

	clock.Advance(time.Hour)
	assert.Equal(t, int64(3), bucket.Tokens())
}

func TestRateLimiter_Allow(t *testing.T) {
	clock := newManualClock()
	limiter := newRateLimiter(3, 1, clock.Now)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("ip:1.1.1.1"), "request %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow("ip:1.1.1.1"))

	// 다른 키는 독립된 버킷
	assert.True(t, limiter.Allow("ip:2.2.2.2"))
}

func TestRateLimiter_Reset(t *testing.T) {
	clock := newManualClock()
	limiter := newRateLimiter(1, 1, clock.Now)

	assert.True(t, limiter.Allow("k"))
	assert.False(t, limiter.Allow("k"))

	limiter.Reset("k")
	assert.True(t, limiter.Allow("k"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := newManualClock()
	limiter := newRateLimiter(2, 1, clock.Now)

	limiter.Allow("old")
	clock.Advance(limiter.cleanupInterval + time.Minute)
	limiter.Allow("fresh")

	limiter.cleanup()

	stats := limiter.GetStats()
	assert.Equal(t, 1, stats["active_buckets"])

	limiter.mu.RLock()
	_, hasFresh := limiter.buckets["fresh"]
	limiter.mu.RUnlock()
	assert.True(t, hasFresh)
}

func TestRateLimiter_Concurrent(t *testing.T) {
	limiter := NewRateLimiter(100, 1)
	defer limiter.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 테스트 실행 중 약간의 리필이 있을 수 있다
	assert.GreaterOrEqual(t, allowed, 100)
	assert.LessOrEqual(t, allowed, 102)
}

func TestRateLimiter_StopIdempotent(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	limiter.Stop()
	limiter.Stop()
}
