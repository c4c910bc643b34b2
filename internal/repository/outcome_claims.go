package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/lingoarena/lingoarena-backend/pkg/database"
)

// MemoryOutcomeClaims 프로세스 내 결과 중복 방지
type MemoryOutcomeClaims struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

func NewMemoryOutcomeClaims() *MemoryOutcomeClaims {
	return &MemoryOutcomeClaims{claimed: make(map[string]struct{})}
}

func (c *MemoryOutcomeClaims) ClaimOutcome(ctx context.Context, matchID, participantID string) (bool, func(context.Context) error, error) {
	key := matchID + "\x00" + participantID

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.claimed[key]; ok {
		return false, nil, nil
	}
	c.claimed[key] = struct{}{}

	release := func(context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.claimed, key)
		return nil
	}
	return true, release, nil
}

// PostgresOutcomeClaims rating_outcomes 기본키로 중복 방지
type PostgresOutcomeClaims struct {
	db *database.DB
}

func NewPostgresOutcomeClaims(db *database.DB) *PostgresOutcomeClaims {
	return &PostgresOutcomeClaims{db: db}
}

func (c *PostgresOutcomeClaims) ClaimOutcome(ctx context.Context, matchID, participantID string) (bool, func(context.Context) error, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO rating_outcomes (match_id, participant_id)
		VALUES ($1, $2)
		ON CONFLICT (match_id, participant_id) DO NOTHING
	`, matchID, participantID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to claim outcome: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("failed to claim outcome: %w", err)
	}
	if n == 0 {
		return false, nil, nil
	}

	release := func(ctx context.Context) error {
		_, err := c.db.ExecContext(ctx,
			`DELETE FROM rating_outcomes WHERE match_id = $1 AND participant_id = $2`,
			matchID, participantID)
		return err
	}
	return true, release, nil
}
