package distributed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAlreadyClaimed = errors.New("key already claimed")
	ErrClaimNotHeld   = errors.New("claim not held")
)

// releaseScript 자신이 획득한 클레임만 삭제
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Claim SETNX로 획득한 키
type Claim struct {
	client *redis.Client
	key    string
	owner  string
}

// ClaimManager Redis SETNX 기반 클레임 관리자
type ClaimManager struct {
	client *redis.Client
}

func NewClaimManager(client *redis.Client) *ClaimManager {
	return &ClaimManager{client: client}
}

// Acquire 키를 owner 값으로 원자적으로 선점. 이미 있으면 ErrAlreadyClaimed
func (m *ClaimManager) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (*Claim, error) {
	ok, err := m.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim %s: %w", key, err)
	}
	if !ok {
		return nil, ErrAlreadyClaimed
	}
	return &Claim{client: m.client, key: key, owner: owner}, nil
}

// Release 다른 owner의 클레임은 건드리지 않는다
func (c *Claim) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, c.client, []string{c.key}, c.owner).Int()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrClaimNotHeld
	}
	return nil
}

// Held reports whether this owner still holds the key.
func (c *Claim) Held(ctx context.Context) (bool, error) {
	value, err := c.client.Get(ctx, c.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == c.owner, nil
}

// OutcomeClaims 매치 결과가 참가자당 한 번만 적용되도록 보장
type OutcomeClaims struct {
	manager *ClaimManager
	owner   string
	ttl     time.Duration
}

func NewOutcomeClaims(client *redis.Client, owner string, ttl time.Duration) *OutcomeClaims {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &OutcomeClaims{
		manager: NewClaimManager(client),
		owner:   owner,
		ttl:     ttl,
	}
}

func outcomeKey(matchID, participantID string) string {
	return fmt.Sprintf("rating:outcome:%s:%s", matchID, participantID)
}

// ClaimOutcome returns claimed=false when the outcome was already claimed.
// The release func undoes the claim if applying the outcome fails.
func (o *OutcomeClaims) ClaimOutcome(ctx context.Context, matchID, participantID string) (bool, func(context.Context) error, error) {
	claim, err := o.manager.Acquire(ctx, outcomeKey(matchID, participantID), o.owner, o.ttl)
	if errors.Is(err, ErrAlreadyClaimed) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, claim.Release, nil
}
