package distributed

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 테스트용 DB
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available:", err)
	}

	// 테스트 전 DB 초기화
	client.FlushDB(ctx)

	return client
}

func TestClaim_AcquireAndRelease(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	manager := NewClaimManager(client)
	ctx := context.Background()

	claim, err := manager.Acquire(ctx, "test:claim", "instance1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, claim)

	// 동일한 키로 다시 획득 시도 (실패해야 함)
	claim2, err := manager.Acquire(ctx, "test:claim", "instance2", 5*time.Second)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.Nil(t, claim2)

	require.NoError(t, claim.Release(ctx))

	// 해제 후 다시 획득 가능
	claim3, err := manager.Acquire(ctx, "test:claim", "instance3", 5*time.Second)
	assert.NoError(t, err)
	assert.NotNil(t, claim3)
}

func TestClaim_SafeRelease(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	manager := NewClaimManager(client)
	ctx := context.Background()

	claim1, err := manager.Acquire(ctx, "test:safe", "instance1", time.Second)
	require.NoError(t, err)

	// 만료 대기
	time.Sleep(1100 * time.Millisecond)

	held, err := claim1.Held(ctx)
	assert.NoError(t, err)
	assert.False(t, held)

	claim2, err := manager.Acquire(ctx, "test:safe", "instance2", 5*time.Second)
	require.NoError(t, err)

	// instance1의 Release는 instance2의 클레임을 지우지 않는다
	assert.ErrorIs(t, claim1.Release(ctx), ErrClaimNotHeld)

	held, err = claim2.Held(ctx)
	assert.NoError(t, err)
	assert.True(t, held)
}

func TestOutcomeClaims_OncePerParticipant(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	claims := NewOutcomeClaims(client, "instance1", time.Minute)
	ctx := context.Background()

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := claims.ClaimOutcome(ctx, "match-1", "player-1")
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners, "only one claim should win")

	// 다른 참가자는 별도로 클레임 가능
	ok, release, err := claims.ClaimOutcome(ctx, "match-1", "player-2")
	require.NoError(t, err)
	assert.True(t, ok)

	// release 후에는 다시 클레임 가능
	require.NoError(t, release(ctx))
	ok, _, err = claims.ClaimOutcome(ctx, "match-1", "player-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func BenchmarkClaim_AcquireRelease(b *testing.B) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		b.Skip("Redis not available")
	}
	defer client.Close()

	manager := NewClaimManager(client)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		claim, err := manager.Acquire(ctx, fmt.Sprintf("bench:claim:%d", i), "bench", 5*time.Second)
		if err != nil {
			b.Fatal(err)
		}
		claim.Release(ctx)
	}
}
