package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript 토큰 버킷을 원자적으로 갱신
// KEYS[1] 버킷 해시, ARGV: limit, window(ms), now(ms)
// 반환: {allowed, remaining, reset(ms)}
var allowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil then
	tokens = limit
	last = now
end

local elapsed = math.max(0, now - last)
tokens = math.min(limit, tokens + elapsed * limit / window)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', key, window * 2)

local reset = now + math.ceil((limit - tokens) * window / limit)
return {allowed, math.floor(tokens), reset}
`)

// RedisRateLimiter Redis 기반 분산 Rate Limiter
// 여러 인스턴스가 같은 키 공간을 공유하므로 IP 제한이 인스턴스 수와 무관하게 유지된다
type RedisRateLimiter struct {
	client    *redis.Client
	keyPrefix string
}

// RateLimitInfo Rate Limit 상세 정보
type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

func NewRedisRateLimiter(client *redis.Client, keyPrefix string) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	return &RedisRateLimiter{client: client, keyPrefix: keyPrefix}
}

// Allow window 동안 limit개의 요청을 허용하는 버킷에서 토큰 하나를 소비
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, *RateLimitInfo, error) {
	if limit <= 0 || window <= 0 {
		return false, nil, fmt.Errorf("invalid rate limit: %d per %v", limit, window)
	}

	now := time.Now().UnixMilli()
	result, err := allowScript.Run(ctx, r.client, []string{r.keyPrefix + key},
		limit, window.Milliseconds(), now).Result()
	if err != nil {
		return false, nil, fmt.Errorf("redis script execution failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return false, nil, fmt.Errorf("invalid script result")
	}

	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	reset, _ := values[2].(int64)

	info := &RateLimitInfo{
		Limit:     limit,
		Remaining: int(remaining),
		ResetTime: time.UnixMilli(reset),
	}
	return allowed == 1, info, nil
}

// Reset 특정 키의 Rate Limit 초기화
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}
