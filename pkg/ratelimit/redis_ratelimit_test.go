package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisRateLimiter 테스트용 Redis Rate Limiter 설정
// 주의: 실제 Redis 서버가 필요합니다 (localhost:6379)
func setupRedisRateLimiter(t *testing.T) (*RedisRateLimiter, *redis.Client) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 테스트용 DB
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis server not available: %v", err)
	}

	return NewRedisRateLimiter(client, "test:ratelimit:"), client
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	limiter, client := setupRedisRateLimiter(t)
	defer client.Close()

	ctx := context.Background()
	key := fmt.Sprintf("ip:%d", time.Now().UnixNano())
	defer limiter.Reset(ctx, key)

	limit := 3
	t.Run("제한 내 요청은 모두 허용", func(t *testing.T) {
		for i := 0; i < limit; i++ {
			allowed, info, err := limiter.Allow(ctx, key, limit, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed, "Request %d should be allowed", i+1)
			assert.Equal(t, limit-i-1, info.Remaining)
		}
	})

	t.Run("제한 초과 요청은 거부", func(t *testing.T) {
		allowed, info, err := limiter.Allow(ctx, key, limit, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 0, info.Remaining)
		assert.True(t, info.ResetTime.After(time.Now()))
	})
}

func TestRedisRateLimiter_Refill(t *testing.T) {
	limiter, client := setupRedisRateLimiter(t)
	defer client.Close()

	ctx := context.Background()
	key := fmt.Sprintf("ip:refill:%d", time.Now().UnixNano())
	defer limiter.Reset(ctx, key)

	window := 400 * time.Millisecond
	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, key, 2, window)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, _, _ := limiter.Allow(ctx, key, 2, window)
	assert.False(t, allowed)

	time.Sleep(250 * time.Millisecond)
	allowed, _, err := limiter.Allow(ctx, key, 2, window)
	require.NoError(t, err)
	assert.True(t, allowed, "Should be allowed after token refill")
}

func TestRedisRateLimiter_Reset(t *testing.T) {
	limiter, client := setupRedisRateLimiter(t)
	defer client.Close()

	ctx := context.Background()
	key := fmt.Sprintf("ip:reset:%d", time.Now().UnixNano())

	limiter.Allow(ctx, key, 1, time.Minute)
	allowed, _, _ := limiter.Allow(ctx, key, 1, time.Minute)
	require.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, key))
	allowed, _, err := limiter.Allow(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_InvalidLimit(t *testing.T) {
	limiter := NewRedisRateLimiter(nil, "")
	_, _, err := limiter.Allow(context.Background(), "k", 0, time.Minute)
	assert.Error(t, err)
}
